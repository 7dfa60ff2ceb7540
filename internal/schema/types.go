// Package schema fetches and caches the per-database structure the Planner
// needs: tables, columns, keys, indexes, and a bounded sample of rows.
package schema

// Column describes one table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// ForeignKey describes one outgoing foreign key from a table.
type ForeignKey struct {
	Column     string
	RefTable   string
	RefColumn  string
	Constraint string
}

// Index describes one index on a table.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is one table's full introspected shape.
type Table struct {
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// Schema is a whole database's introspected shape, plus a bounded sample of
// rows per table for the Planner's prompt.
type Schema struct {
	Tables     map[string]Table
	SampleRows map[string][][]any
}
