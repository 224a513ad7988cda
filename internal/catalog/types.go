// Package catalog defines the fixed set of landing-zone entities and the
// metadata for their raw-schema tables.
package catalog

import "strings"

// ColumnMetadata describes a single table column.
type ColumnMetadata struct {
	Name       string
	SQLType    string
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Default    string // server-side default expression, empty if none
	Check      string // column-level CHECK expression, empty if none
}

// TableMetadata describes a table in the database.
type TableMetadata struct {
	Schema  string
	Name    string
	Columns []ColumnMetadata
}

// QualifiedName returns the schema-qualified, quoted table name.
// Quoting is unconditional because "order" is a reserved word.
func (t *TableMetadata) QualifiedName() string {
	return QuoteIdent(t.Schema) + "." + QuoteIdent(t.Name)
}

// PrimaryKey returns the names of the primary key columns.
func (t *TableMetadata) PrimaryKey() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// ColumnNames returns the names of all columns in definition order.
func (t *TableMetadata) ColumnNames() []string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Name
	}
	return cols
}

// CopyColumns returns the columns expected in an incoming CSV file.
// Columns with a server-side default (processed_at) are filled by the
// database and excluded from COPY.
func (t *TableMetadata) CopyColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.Default == "" {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Column returns the column with the given name, or nil.
func (t *TableMetadata) Column(name string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// QuoteIdent quotes a PostgreSQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdents quotes a list of identifiers.
func QuoteIdents(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return quoted
}
