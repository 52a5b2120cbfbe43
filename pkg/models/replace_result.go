package models

// FieldReplaceResult is the outcome of running one field through the strategy chain.
type FieldReplaceResult struct {
	Column        *ColumnMetadata
	ReplacedCount int
	Errors        []string
	OldValue      string
	NewValue      string
}

// HasErrors reports whether the field recorded any error.
func (f FieldReplaceResult) HasErrors() bool {
	return len(f.Errors) > 0
}

// Changed reports whether the field has a new value to write.
func (f FieldReplaceResult) Changed() bool {
	return f.ReplacedCount > 0 && f.NewValue != f.OldValue
}

// UpdateStatement records the statement issued for one row.
type UpdateStatement struct {
	SQL         string
	Args        []any
	Assignments []string // columns written, in order
	KeyColumns  []string // columns in the WHERE clause, in order
}

// RowReplaceResult is the outcome of replacing within one row.
type RowReplaceResult struct {
	Search *RowSearchResult
	Fields []FieldReplaceResult
	Errors []string // row-level errors such as length overflow

	// Update is the statement that was executed, or nil when nothing was written.
	Update *UpdateStatement
	// RowsAffected is the driver-reported count for Update.
	RowsAffected int64
}

// ReplacedCount sums the replacements across all fields.
func (r *RowReplaceResult) ReplacedCount() int {
	total := 0
	for _, f := range r.Fields {
		total += f.ReplacedCount
	}
	return total
}

// AllErrors returns row errors followed by field errors.
func (r *RowReplaceResult) AllErrors() []string {
	out := make([]string, 0, len(r.Errors))
	out = append(out, r.Errors...)
	for _, f := range r.Fields {
		out = append(out, f.Errors...)
	}
	return out
}

// Field returns the replace result for a column.
func (r *RowReplaceResult) Field(column string) (FieldReplaceResult, bool) {
	for _, f := range r.Fields {
		if f.Column != nil && f.Column.ColumnName == column {
			return f, true
		}
	}
	return FieldReplaceResult{}, false
}

// TableReplaceResult aggregates progress for one table.
type TableReplaceResult struct {
	Table            *TableMetadata
	RowsProcessed    int
	RowsUpdated      int
	FieldsReplaced   int
	ReplacedCount    int
	BatchesCommitted int
	Errors           []string
	Complete         bool
}

// DatabaseReplaceResult aggregates progress across the tables of one database.
type DatabaseReplaceResult struct {
	Database *DatabaseMetadata
	Tables   []TableReplaceResult
	Complete bool
}

// RowsUpdated sums the updated rows across tables.
func (d *DatabaseReplaceResult) RowsUpdated() int {
	total := 0
	for _, t := range d.Tables {
		total += t.RowsUpdated
	}
	return total
}

// ReplacedCount sums the replacements across tables.
func (d *DatabaseReplaceResult) ReplacedCount() int {
	total := 0
	for _, t := range d.Tables {
		total += t.ReplacedCount
	}
	return total
}

// Errors returns every table error in table order.
func (d *DatabaseReplaceResult) Errors() []string {
	var out []string
	for _, t := range d.Tables {
		out = append(out, t.Errors...)
	}
	return out
}
