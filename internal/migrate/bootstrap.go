package migrate

import (
	"strings"

	"github.com/marshallshelly/gravel/internal/catalog"
)

// BootstrapVersion sorts before any timestamp version so the schema
// bootstrap always runs first.
const BootstrapVersion = "00000000000001"

// Bootstrap builds the schema bootstrap migration from the catalog:
// the raw and reporting schemas, the three landing tables with their
// constraints, and the per-entity manifest tables. All DDL is
// IF NOT EXISTS, so re-applying the statements is harmless.
func Bootstrap() Migration {
	return Migration{
		Version: BootstrapVersion,
		Name:    "bootstrap_landing_zone",
		UpSQL:   joinStatements(catalog.BootstrapSQL()),
		DownSQL: joinStatements(catalog.TeardownSQL()),
	}
}

func joinStatements(stmts []string) string {
	return strings.Join(stmts, ";\n\n") + ";\n"
}
