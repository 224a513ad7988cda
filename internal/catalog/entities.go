package catalog

import (
	"fmt"
	"sort"
)

// Schema names for the landing zone and the (empty) reporting layer.
const (
	RawSchema       = "raw"
	ReportingSchema = "reporting"
)

// Entity groups the three tables that back one ingested data type: the
// landing table rows end up in, the staging table files are copied
// into, and the manifest table tracking processed files.
type Entity struct {
	Name     string
	Landing  *TableMetadata
	Staging  *TableMetadata
	Manifest *TableMetadata
}

// PrimaryKeyColumn returns the landing table's primary key column name.
// Every landing table has a single-column key.
func (e *Entity) PrimaryKeyColumn() string {
	pk := e.Landing.PrimaryKey()
	return pk[0]
}

var entities = map[string]*Entity{
	"order":    orderEntity(),
	"product":  productEntity(),
	"customer": customerEntity(),
}

// Lookup returns the entity with the given name.
func Lookup(name string) (*Entity, error) {
	e, ok := entities[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity: %q (known: %v)", name, Names())
	}
	return e, nil
}

// All returns every entity, ordered by name.
func All() []*Entity {
	names := Names()
	all := make([]*Entity, len(names))
	for i, n := range names {
		all[i] = entities[n]
	}
	return all
}

// Names returns the sorted entity names.
func Names() []string {
	names := make([]string, 0, len(entities))
	for n := range entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func orderEntity() *Entity {
	cols := []ColumnMetadata{
		{Name: "order_id", SQLType: "uuid", PrimaryKey: true, NotNull: true},
		{Name: "order_ts", SQLType: "timestamptz"},
		{Name: "customer_id", SQLType: "text"},
		{Name: "product_id", SQLType: "text"},
		{Name: "quantity", SQLType: "integer", Check: "quantity > 0"},
		{Name: "price_per_unit", SQLType: "numeric(10,2)", Check: "price_per_unit >= 0"},
		{Name: "status", SQLType: "text", Check: "status IN ('completed', 'cancelled', 'refunded')"},
		{Name: "processed_at", SQLType: "timestamptz", NotNull: true, Default: "now()"},
	}
	return newEntity("order", cols)
}

func productEntity() *Entity {
	cols := []ColumnMetadata{
		{Name: "product_id", SQLType: "text", PrimaryKey: true, NotNull: true},
		{Name: "product_name", SQLType: "text", NotNull: true},
		{Name: "category", SQLType: "text"},
		{Name: "processed_at", SQLType: "timestamptz", NotNull: true, Default: "now()"},
	}
	return newEntity("product", cols)
}

func customerEntity() *Entity {
	cols := []ColumnMetadata{
		{Name: "customer_id", SQLType: "uuid", PrimaryKey: true, NotNull: true},
		{Name: "first_name", SQLType: "text"},
		{Name: "last_name", SQLType: "text"},
		{Name: "email", SQLType: "text", Unique: true},
		{Name: "processed_at", SQLType: "timestamptz", NotNull: true, Default: "now()"},
	}
	return newEntity("customer", cols)
}

// newEntity derives the staging and manifest tables from the landing
// columns. Staging keeps the key but drops CHECK and UNIQUE constraints
// so incoming files land untouched; validation happens when staged rows
// are merged into the landing table.
func newEntity(name string, landingCols []ColumnMetadata) *Entity {
	stagingCols := make([]ColumnMetadata, len(landingCols))
	for i, c := range landingCols {
		c.Check = ""
		c.Unique = false
		stagingCols[i] = c
	}

	return &Entity{
		Name: name,
		Landing: &TableMetadata{
			Schema:  RawSchema,
			Name:    name,
			Columns: landingCols,
		},
		Staging: &TableMetadata{
			Schema:  RawSchema,
			Name:    "stg_" + name,
			Columns: stagingCols,
		},
		Manifest: &TableMetadata{
			Schema: RawSchema,
			Name:   name + "_manifest",
			Columns: []ColumnMetadata{
				{Name: "file_name", SQLType: "text", NotNull: true},
				{Name: "digest", SQLType: "text", PrimaryKey: true, NotNull: true},
				{Name: "file_size", SQLType: "bigint", NotNull: true},
				{Name: "processed_at", SQLType: "bigint", NotNull: true},
			},
		},
	}
}
