package catalog

import (
	"fmt"
	"strings"
)

// CreateSchemaSQL returns the DDL for a schema. IF NOT EXISTS keeps the
// bootstrap re-runnable.
func CreateSchemaSQL(schema string) string {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", QuoteIdent(schema))
}

// DropSchemaSQL returns the DDL to drop a schema and everything in it.
func DropSchemaSQL(schema string) string {
	return fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", QuoteIdent(schema))
}

// CreateTableSQL renders the CREATE TABLE statement for a table.
func CreateTableSQL(t *TableMetadata) string {
	var defs []string

	for _, c := range t.Columns {
		var b strings.Builder
		b.WriteString(QuoteIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(c.SQLType)

		if c.NotNull && !c.PrimaryKey {
			b.WriteString(" NOT NULL")
		}
		if c.Default != "" {
			b.WriteString(" DEFAULT " + c.Default)
		}
		if c.Unique {
			b.WriteString(" UNIQUE")
		}
		if c.Check != "" {
			fmt.Fprintf(&b, " CONSTRAINT %s CHECK (%s)",
				QuoteIdent(t.Name+"_"+c.Name+"_check"), c.Check)
		}

		defs = append(defs, b.String())
	}

	if pk := t.PrimaryKey(); len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(QuoteIdents(pk), ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		t.QualifiedName(), strings.Join(defs, ",\n\t"))
}

// DropTableSQL renders the DROP TABLE statement for a table.
func DropTableSQL(t *TableMetadata) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", t.QualifiedName())
}

// BootstrapSQL returns the full schema bootstrap in execution order:
// both schemas, then every landing and manifest table. Staging tables
// are not part of the bootstrap; the ingest processor recreates them
// each run.
func BootstrapSQL() []string {
	stmts := []string{
		CreateSchemaSQL(RawSchema),
		CreateSchemaSQL(ReportingSchema),
	}
	for _, e := range All() {
		stmts = append(stmts, CreateTableSQL(e.Landing))
	}
	for _, e := range All() {
		stmts = append(stmts, CreateTableSQL(e.Manifest))
	}
	return stmts
}

// TeardownSQL returns the statements reversing BootstrapSQL.
func TeardownSQL() []string {
	return []string{
		DropSchemaSQL(ReportingSchema),
		DropSchemaSQL(RawSchema),
	}
}
