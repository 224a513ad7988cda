package catalog

import (
	"reflect"
	"testing"
)

func TestNames(t *testing.T) {
	want := []string{"customer", "order", "product"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup("invoice"); err == nil {
		t.Error("expected error for unknown entity")
	}
}

func TestCopyColumns_ExcludesProcessedAt(t *testing.T) {
	tests := []struct {
		entity string
		want   []string
	}{
		{
			entity: "order",
			want:   []string{"order_id", "order_ts", "customer_id", "product_id", "quantity", "price_per_unit", "status"},
		},
		{
			entity: "product",
			want:   []string{"product_id", "product_name", "category"},
		},
		{
			entity: "customer",
			want:   []string{"customer_id", "first_name", "last_name", "email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			e := mustLookup(t, tt.entity)
			if got := e.Staging.CopyColumns(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CopyColumns() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrimaryKeyColumn(t *testing.T) {
	tests := []struct {
		entity string
		want   string
	}{
		{"order", "order_id"},
		{"product", "product_id"},
		{"customer", "customer_id"},
	}

	for _, tt := range tests {
		if got := mustLookup(t, tt.entity).PrimaryKeyColumn(); got != tt.want {
			t.Errorf("PrimaryKeyColumn(%s) = %q, want %q", tt.entity, got, tt.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"order", `"order"`},
		{"raw", `"raw"`},
		{`odd"name`, `"odd""name"`},
	}

	for _, tt := range tests {
		if got := QuoteIdent(tt.in); got != tt.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQualifiedName(t *testing.T) {
	e := mustLookup(t, "order")
	if got := e.Landing.QualifiedName(); got != `"raw"."order"` {
		t.Errorf("QualifiedName() = %q", got)
	}
}
