package datasource

// TableInfo describes a discovered base table.
type TableInfo struct {
	Name      string
	Engine    string
	Collation string
	Charset   string
	RowCount  int64
}

// ColumnInfo describes a discovered column. DataType is normalized so that
// character types use MySQL spelling (varchar, char, text).
type ColumnInfo struct {
	Name         string
	DataType     string
	MaxLength    *int
	IsNullable   bool
	IsPrimaryKey bool
	IsIndexed    bool
}

// TableCharset is the session state PrepareTable applies. Empty values and
// "DEFAULT" leave the session unchanged.
type TableCharset struct {
	Charset   string
	Collation string
}

// IsDefault reports whether no explicit character set is known.
func (c TableCharset) IsDefault() bool {
	return isUnset(c.Charset) && isUnset(c.Collation)
}

func isUnset(v string) bool {
	return v == "" || v == "DEFAULT"
}
