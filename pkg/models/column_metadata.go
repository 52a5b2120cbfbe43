package models

import (
	"fmt"
	"strings"
)

// StringTypePrefixes lists the declared-type prefixes treated as searchable text.
// Matching is done against the trimmed, lower-cased declared type, so
// "varchar(255)" and "LONGTEXT" both qualify.
var StringTypePrefixes = []string{
	"char",
	"varchar",
	"tinyblob",
	"blob",
	"mediumblob",
	"longblob",
	"tinytext",
	"text",
	"mediumtext",
	"longtext",
}

// ColumnMetadata describes a single column discovered from a live catalog or a dump file.
// Values are immutable once constructed.
type ColumnMetadata struct {
	DatabaseName string `yaml:"database" json:"database"`
	TableName    string `yaml:"table" json:"table"`
	ColumnName   string `yaml:"name" json:"name"`
	Type         string `yaml:"type" json:"type"`
	MaxLength    *int   `yaml:"max_length,omitempty" json:"max_length,omitempty"` // nil when unbounded or unknown
	IsPrimaryKey bool   `yaml:"primary_key" json:"primary_key"`
	IsNullable   bool   `yaml:"nullable" json:"nullable"`
	IsIndexed    bool   `yaml:"indexed" json:"indexed"`
}

// NewColumnMetadata builds a ColumnMetadata. maxLength may be nil.
func NewColumnMetadata(database, table, column, columnType string, maxLength *int, isPrimaryKey, isNullable, isIndexed bool) *ColumnMetadata {
	var ml *int
	if maxLength != nil {
		v := *maxLength
		ml = &v
	}
	return &ColumnMetadata{
		DatabaseName: database,
		TableName:    table,
		ColumnName:   column,
		Type:         columnType,
		MaxLength:    ml,
		IsPrimaryKey: isPrimaryKey,
		IsNullable:   isNullable,
		IsIndexed:    isIndexed,
	}
}

// Key returns the column identity as "database.table.column".
func (c *ColumnMetadata) Key() string {
	return fmt.Sprintf("%s.%s.%s", c.DatabaseName, c.TableName, c.ColumnName)
}

// IsStringType reports whether the declared type is one of the searchable text types.
func (c *ColumnMetadata) IsStringType() bool {
	return IsStringType(c.Type)
}

// Clone returns a deep copy of c.
func (c *ColumnMetadata) Clone() *ColumnMetadata {
	cc := *c
	if c.MaxLength != nil {
		cc.MaxLength = IntPtr(*c.MaxLength)
	}
	return &cc
}

// HasMaxLength reports whether the column carries a declared maximum length.
func (c *ColumnMetadata) HasMaxLength() bool {
	return c.MaxLength != nil
}

// IsStringType reports whether a declared type string names a searchable text type.
func IsStringType(columnType string) bool {
	t := strings.ToLower(strings.TrimSpace(columnType))
	for _, prefix := range StringTypePrefixes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
