package models

// FieldSearchResult is one cell whose value contains the search term.
type FieldSearchResult struct {
	Column *ColumnMetadata
	Value  string
}

// RowSearchResult holds the matching cells of one row.
// Only columns whose value contains the term are present.
type RowSearchResult struct {
	Table           *TableMetadata
	PrimaryKey      *ColumnMetadata // nil when the table has no primary key
	PrimaryKeyValue *string

	fields []FieldSearchResult
	index  map[string]int
	keys   []KeyValue
}

// KeyValue is the value of one primary key column in a row.
type KeyValue struct {
	Column *ColumnMetadata
	Value  *string
}

// NewRowSearchResult builds a RowSearchResult. A second field for the same column is ignored.
func NewRowSearchResult(table *TableMetadata, fields []FieldSearchResult, primaryKey *ColumnMetadata, primaryKeyValue *string) *RowSearchResult {
	r := &RowSearchResult{
		Table:      table,
		PrimaryKey: primaryKey,
		index:      make(map[string]int, len(fields)),
	}
	if primaryKeyValue != nil {
		v := *primaryKeyValue
		r.PrimaryKeyValue = &v
	}
	for _, f := range fields {
		if f.Column == nil {
			continue
		}
		if _, exists := r.index[f.Column.ColumnName]; exists {
			continue
		}
		r.index[f.Column.ColumnName] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	return r
}

// NewKeyedRowSearchResult builds a RowSearchResult addressed by every column
// of a (possibly compound) primary key. PrimaryKey is the first key column.
func NewKeyedRowSearchResult(table *TableMetadata, fields []FieldSearchResult, keys []KeyValue) *RowSearchResult {
	if len(keys) == 0 {
		return NewRowSearchResult(table, fields, nil, nil)
	}
	r := NewRowSearchResult(table, fields, keys[0].Column, keys[0].Value)
	r.keys = make([]KeyValue, len(keys))
	for i, k := range keys {
		r.keys[i] = KeyValue{Column: k.Column}
		if k.Value != nil {
			v := *k.Value
			r.keys[i].Value = &v
		}
	}
	return r
}

// Keys returns the primary key columns and values that address the row.
// A row built with NewRowSearchResult reports its single primary key.
func (r *RowSearchResult) Keys() []KeyValue {
	if len(r.keys) > 0 {
		out := make([]KeyValue, len(r.keys))
		copy(out, r.keys)
		return out
	}
	if r.PrimaryKey == nil {
		return nil
	}
	return []KeyValue{{Column: r.PrimaryKey, Value: r.PrimaryKeyValue}}
}

// Fields returns the matching fields in column order.
func (r *RowSearchResult) Fields() []FieldSearchResult {
	out := make([]FieldSearchResult, len(r.fields))
	copy(out, r.fields)
	return out
}

// Field returns the matching field for a column.
func (r *RowSearchResult) Field(column string) (FieldSearchResult, bool) {
	i, ok := r.index[column]
	if !ok {
		return FieldSearchResult{}, false
	}
	return r.fields[i], true
}

// FieldCount returns the number of matching fields.
func (r *RowSearchResult) FieldCount() int {
	return len(r.fields)
}

// HasPrimaryKey reports whether the row can be addressed by primary key.
// Every key column must carry a value.
func (r *RowSearchResult) HasPrimaryKey() bool {
	if r.PrimaryKey == nil || r.PrimaryKeyValue == nil {
		return false
	}
	for _, k := range r.keys {
		if k.Value == nil {
			return false
		}
	}
	return true
}
