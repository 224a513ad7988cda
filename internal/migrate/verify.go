package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marshallshelly/gravel/internal/catalog"
)

// VerifyProblem describes one mismatch between the catalog and the
// live database.
type VerifyProblem struct {
	Table  string
	Detail string
}

func (p VerifyProblem) String() string {
	return p.Table + ": " + p.Detail
}

// Verify introspects the database and checks that every landing and
// manifest table exists with the columns the catalog expects. It
// reports mismatches rather than failing on the first one.
func Verify(ctx context.Context, pool *pgxpool.Pool) ([]VerifyProblem, error) {
	var problems []VerifyProblem

	for _, schema := range []string{catalog.RawSchema, catalog.ReportingSchema} {
		exists, err := schemaExists(ctx, pool, schema)
		if err != nil {
			return nil, err
		}
		if !exists {
			problems = append(problems, VerifyProblem{Table: schema, Detail: "schema does not exist"})
		}
	}

	for _, e := range catalog.All() {
		for _, t := range []*catalog.TableMetadata{e.Landing, e.Manifest} {
			tableProblems, err := verifyTable(ctx, pool, t)
			if err != nil {
				return nil, err
			}
			problems = append(problems, tableProblems...)
		}
	}

	return problems, nil
}

func schemaExists(ctx context.Context, pool *pgxpool.Pool, schema string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		schema,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", schema, err)
	}
	return exists, nil
}

func verifyTable(ctx context.Context, pool *pgxpool.Pool, t *catalog.TableMetadata) ([]VerifyProblem, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, t.Schema, t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", t.QualifiedName(), err)
	}
	defer rows.Close()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	qualified := t.Schema + "." + t.Name

	if len(found) == 0 {
		return []VerifyProblem{{Table: qualified, Detail: "table does not exist"}}, nil
	}

	var problems []VerifyProblem
	for _, col := range t.ColumnNames() {
		if !found[col] {
			problems = append(problems, VerifyProblem{
				Table:  qualified,
				Detail: "missing column " + col,
			})
		}
	}

	return problems, nil
}
