package ingest

import (
	"strings"
	"testing"

	"github.com/marshallshelly/gravel/internal/catalog"
)

func TestCopySQL(t *testing.T) {
	tests := []struct {
		entity string
		want   string
	}{
		{
			entity: "order",
			want: `COPY "raw"."stg_order" ("order_id", "order_ts", "customer_id", "product_id", "quantity", "price_per_unit", "status") FROM STDIN WITH (FORMAT csv, HEADER true, NULL 'NULL')`,
		},
		{
			entity: "customer",
			want: `COPY "raw"."stg_customer" ("customer_id", "first_name", "last_name", "email") FROM STDIN WITH (FORMAT csv, HEADER true, NULL 'NULL')`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			e, err := catalog.Lookup(tt.entity)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if got := CopySQL(e); got != tt.want {
				t.Errorf("CopySQL =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestMergeSQL(t *testing.T) {
	e, err := catalog.Lookup("order")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	sql := MergeSQL(e)

	wantFragments := []string{
		`INSERT INTO "raw"."order" AS landing`,
		`FROM "raw"."stg_order"`,
		`ON CONFLICT ("order_id") DO UPDATE SET`,
		`"quantity" = EXCLUDED."quantity"`,
		`WHERE EXCLUDED.processed_at > landing.processed_at`,
	}
	for _, want := range wantFragments {
		if !strings.Contains(sql, want) {
			t.Errorf("MergeSQL missing %q\nGot:\n%s", want, sql)
		}
	}

	// The primary key must never appear in the SET clause
	if strings.Contains(sql, `"order_id" = EXCLUDED."order_id"`) {
		t.Errorf("MergeSQL updates the primary key:\n%s", sql)
	}
}

func TestMergeSQL_AllEntities(t *testing.T) {
	for _, e := range catalog.All() {
		sql := MergeSQL(e)
		if !strings.Contains(sql, "ON CONFLICT") || !strings.Contains(sql, "EXCLUDED.processed_at") {
			t.Errorf("MergeSQL(%s) missing upsert guard:\n%s", e.Name, sql)
		}
	}
}
