package models

import (
	"fmt"

	"github.com/ekaya-inc/grepdb/pkg/apperrors"
)

// UnknownRowCount marks a table whose row count has no estimate, such as one parsed from a dump.
const UnknownRowCount int64 = -1

// DefaultTableOption is used for engine, charset and collation when none is declared.
const DefaultTableOption = "DEFAULT"

// TableMetadata describes a table and its columns in discovery order.
type TableMetadata struct {
	DatabaseName string
	TableName    string
	Engine       string
	Collation    string
	Charset      string
	RowCount     int64

	columns []*ColumnMetadata
	byName  map[string]*ColumnMetadata
}

// NewTableMetadata builds a TableMetadata. When two columns share a name the
// first one wins.
func NewTableMetadata(database, table, engine, collation, charset string, rowCount int64, columns []*ColumnMetadata) *TableMetadata {
	t := &TableMetadata{
		DatabaseName: database,
		TableName:    table,
		Engine:       engine,
		Collation:    collation,
		Charset:      charset,
		RowCount:     rowCount,
		columns:      make([]*ColumnMetadata, 0, len(columns)),
		byName:       make(map[string]*ColumnMetadata, len(columns)),
	}
	for _, col := range columns {
		if col == nil {
			continue
		}
		if _, exists := t.byName[col.ColumnName]; exists {
			continue
		}
		c := col.Clone()
		t.columns = append(t.columns, c)
		t.byName[c.ColumnName] = c
	}
	return t
}

// Key returns "database.table".
func (t *TableMetadata) Key() string {
	return t.DatabaseName + "." + t.TableName
}

// Columns returns copies of the columns in discovery order.
func (t *TableMetadata) Columns() []*ColumnMetadata {
	out := make([]*ColumnMetadata, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Clone()
	}
	return out
}

func cloneColumns(columns []*ColumnMetadata, keep func(*ColumnMetadata) bool) []*ColumnMetadata {
	var out []*ColumnMetadata
	for _, c := range columns {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// ColumnNames returns the column names in discovery order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.ColumnName
	}
	return names
}

// Column returns the named column.
func (t *TableMetadata) Column(name string) (*ColumnMetadata, error) {
	if c, ok := t.byName[name]; ok {
		return c.Clone(), nil
	}
	return nil, fmt.Errorf("column %q in table %q: %w", name, t.TableName, apperrors.ErrNotFound)
}

// HasColumn reports whether the table has a column with the given name.
func (t *TableMetadata) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// HasStringTypeColumn reports whether at least one column is searchable text.
func (t *TableMetadata) HasStringTypeColumn() bool {
	for _, c := range t.columns {
		if c.IsStringType() {
			return true
		}
	}
	return false
}

// StringColumns returns the searchable text columns in discovery order.
func (t *TableMetadata) StringColumns() []*ColumnMetadata {
	return cloneColumns(t.columns, (*ColumnMetadata).IsStringType)
}

// PrimaryKey returns the first column flagged as primary key, or nil.
func (t *TableMetadata) PrimaryKey() *ColumnMetadata {
	for _, c := range t.columns {
		if c.IsPrimaryKey {
			return c.Clone()
		}
	}
	return nil
}

// PrimaryKeyColumns returns every column flagged as primary key.
func (t *TableMetadata) PrimaryKeyColumns() []*ColumnMetadata {
	return cloneColumns(t.columns, func(c *ColumnMetadata) bool { return c.IsPrimaryKey })
}

// WithDatabaseName returns a copy of the table bound to another database.
// Used when a dump-parsed schema drives a search against a live database.
func (t *TableMetadata) WithDatabaseName(database string) *TableMetadata {
	cols := make([]*ColumnMetadata, len(t.columns))
	for i, c := range t.columns {
		cc := c.Clone()
		cc.DatabaseName = database
		cols[i] = cc
	}
	return NewTableMetadata(database, t.TableName, t.Engine, t.Collation, t.Charset, t.RowCount, cols)
}

// HasExplicitCharset reports whether charset and collation are declared rather than defaulted.
func (t *TableMetadata) HasExplicitCharset() bool {
	return t.Charset != "" && t.Charset != DefaultTableOption &&
		t.Collation != "" && t.Collation != DefaultTableOption
}
