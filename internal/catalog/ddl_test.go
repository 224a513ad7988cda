package catalog

import (
	"strings"
	"testing"
)

func TestCreateTableSQL(t *testing.T) {
	tests := []struct {
		name         string
		table        func() *TableMetadata
		wantContains []string
	}{
		{
			name:  "order landing table",
			table: func() *TableMetadata { return mustLookup(t, "order").Landing },
			wantContains: []string{
				`CREATE TABLE IF NOT EXISTS "raw"."order"`,
				`"order_id" uuid`,
				`CONSTRAINT "order_quantity_check" CHECK (quantity > 0)`,
				`CONSTRAINT "order_price_per_unit_check" CHECK (price_per_unit >= 0)`,
				`CONSTRAINT "order_status_check" CHECK (status IN ('completed', 'cancelled', 'refunded'))`,
				`"processed_at" timestamptz NOT NULL DEFAULT now()`,
				`PRIMARY KEY ("order_id")`,
			},
		},
		{
			name:  "customer landing table",
			table: func() *TableMetadata { return mustLookup(t, "customer").Landing },
			wantContains: []string{
				`CREATE TABLE IF NOT EXISTS "raw"."customer"`,
				`"email" text UNIQUE`,
				`PRIMARY KEY ("customer_id")`,
			},
		},
		{
			name:  "staging table has no checks",
			table: func() *TableMetadata { return mustLookup(t, "order").Staging },
			wantContains: []string{
				`CREATE TABLE IF NOT EXISTS "raw"."stg_order"`,
				`PRIMARY KEY ("order_id")`,
			},
		},
		{
			name:  "manifest table",
			table: func() *TableMetadata { return mustLookup(t, "product").Manifest },
			wantContains: []string{
				`CREATE TABLE IF NOT EXISTS "raw"."product_manifest"`,
				`"digest" text`,
				`"file_size" bigint NOT NULL`,
				`PRIMARY KEY ("digest")`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := CreateTableSQL(tt.table())
			for _, want := range tt.wantContains {
				if !strings.Contains(sql, want) {
					t.Errorf("CreateTableSQL missing %q\nGot:\n%s", want, sql)
				}
			}
		})
	}
}

func TestCreateTableSQL_StagingDropsConstraints(t *testing.T) {
	sql := CreateTableSQL(mustLookup(t, "order").Staging)
	if strings.Contains(sql, "CHECK") {
		t.Errorf("staging table should carry no CHECK constraints:\n%s", sql)
	}

	sql = CreateTableSQL(mustLookup(t, "customer").Staging)
	if strings.Contains(sql, "UNIQUE") {
		t.Errorf("staging table should carry no UNIQUE constraints:\n%s", sql)
	}
}

func TestBootstrapSQL(t *testing.T) {
	stmts := BootstrapSQL()

	if len(stmts) != 2+2*len(All()) {
		t.Fatalf("expected %d statements, got %d", 2+2*len(All()), len(stmts))
	}

	// Schemas come first so the tables can reference them
	if stmts[0] != `CREATE SCHEMA IF NOT EXISTS "raw"` {
		t.Errorf("unexpected first statement: %s", stmts[0])
	}
	if stmts[1] != `CREATE SCHEMA IF NOT EXISTS "reporting"` {
		t.Errorf("unexpected second statement: %s", stmts[1])
	}

	for _, stmt := range stmts {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Errorf("bootstrap statement is not idempotent: %s", stmt)
		}
	}
}

func TestDropTableSQL(t *testing.T) {
	got := DropTableSQL(mustLookup(t, "order").Staging)
	want := `DROP TABLE IF EXISTS "raw"."stg_order"`
	if got != want {
		t.Errorf("DropTableSQL = %q, want %q", got, want)
	}
}

func mustLookup(t *testing.T, name string) *Entity {
	t.Helper()
	e, err := Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	return e
}
