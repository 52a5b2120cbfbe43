package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableMetadata_Key(t *testing.T) {
	assert.Equal(t, "db.posts", newTestTable().Key())
}

func TestTableMetadata_SkipsNilColumns(t *testing.T) {
	table := NewTableMetadata("db", "t", "", "", "", 0, []*ColumnMetadata{
		nil,
		NewColumnMetadata("db", "t", "a", "text", nil, false, true, false),
	})
	assert.Equal(t, []string{"a"}, table.ColumnNames())
}

func TestTableMetadata_CompoundPrimaryKey(t *testing.T) {
	table := NewTableMetadata("db", "links", "InnoDB", DefaultTableOption, DefaultTableOption, UnknownRowCount, []*ColumnMetadata{
		NewColumnMetadata("db", "links", "a_id", "int(11)", nil, true, false, true),
		NewColumnMetadata("db", "links", "b_id", "int(11)", nil, true, false, true),
		NewColumnMetadata("db", "links", "label", "varchar(32)", IntPtr(32), false, true, false),
	})

	var names []string
	for _, c := range table.PrimaryKeyColumns() {
		names = append(names, c.ColumnName)
	}
	assert.Equal(t, []string{"a_id", "b_id"}, names)
	assert.Equal(t, "a_id", table.PrimaryKey().ColumnName)
}

func TestTableMetadata_AccessorsReturnCopies(t *testing.T) {
	table := NewTableMetadata("db", "links", "InnoDB", DefaultTableOption, DefaultTableOption, UnknownRowCount, []*ColumnMetadata{
		NewColumnMetadata("db", "links", "id", "int(11)", nil, true, false, true),
		NewColumnMetadata("db", "links", "label", "varchar(32)", IntPtr(32), false, true, false),
	})

	for _, c := range table.Columns() {
		c.ColumnName = "changed"
	}
	table.StringColumns()[0].Type = "int(11)"
	*table.StringColumns()[0].MaxLength = 1
	table.PrimaryKey().IsPrimaryKey = false
	table.PrimaryKeyColumns()[0].DatabaseName = "other"

	label, err := table.Column("label")
	require.NoError(t, err)
	label.IsNullable = false

	assert.Equal(t, []string{"id", "label"}, table.ColumnNames())
	assert.True(t, table.HasStringTypeColumn())
	assert.Equal(t, "id", table.PrimaryKey().ColumnName)
	assert.Equal(t, "db", table.PrimaryKey().DatabaseName)

	got, err := table.Column("label")
	require.NoError(t, err)
	assert.Equal(t, "varchar(32)", got.Type)
	assert.Equal(t, IntPtr(32), got.MaxLength)
	assert.True(t, got.IsNullable)
}

func TestTableMetadata_CopiesConstructorColumns(t *testing.T) {
	col := NewColumnMetadata("db", "t", "a", "varchar(8)", IntPtr(8), false, true, false)
	table := NewTableMetadata("db", "t", "", "", "", 0, []*ColumnMetadata{col})

	col.ColumnName = "b"
	*col.MaxLength = 99

	got, err := table.Column("a")
	require.NoError(t, err)
	assert.Equal(t, IntPtr(8), got.MaxLength)
}

func TestTableMetadata_HasExplicitCharset(t *testing.T) {
	tests := []struct {
		name      string
		charset   string
		collation string
		want      bool
	}{
		{"both declared", "utf8mb4", "utf8mb4_unicode_ci", true},
		{"defaulted collation", "latin1", DefaultTableOption, false},
		{"defaulted charset", DefaultTableOption, "latin1_swedish_ci", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTableMetadata("db", "t", "InnoDB", tt.collation, tt.charset, 0, nil)
			assert.Equal(t, tt.want, table.HasExplicitCharset())
		})
	}
}

func TestFieldReplaceResult_Changed(t *testing.T) {
	assert.True(t, FieldReplaceResult{ReplacedCount: 1, OldValue: "a", NewValue: "b"}.Changed())
	assert.False(t, FieldReplaceResult{ReplacedCount: 1, OldValue: "a", NewValue: "a"}.Changed(), "replacing a term with itself writes nothing")
	assert.False(t, FieldReplaceResult{OldValue: "a", NewValue: "a"}.Changed())
	assert.True(t, FieldReplaceResult{Errors: []string{"x"}}.HasErrors())
}

func TestRowReplaceResult_Field(t *testing.T) {
	table := newTestTable()
	title, _ := table.Column("title")
	row := &RowReplaceResult{Fields: []FieldReplaceResult{{Column: title, ReplacedCount: 3}}}

	f, ok := row.Field("title")
	assert.True(t, ok)
	assert.Equal(t, 3, f.ReplacedCount)

	_, ok = row.Field("body")
	assert.False(t, ok)
}

func TestDatabaseReplaceResult_Aggregates(t *testing.T) {
	res := &DatabaseReplaceResult{Tables: []TableReplaceResult{
		{RowsUpdated: 2, ReplacedCount: 5, Errors: []string{"first"}},
		{RowsUpdated: 1, ReplacedCount: 1, Errors: []string{"second", "third"}},
	}}

	assert.Equal(t, 3, res.RowsUpdated())
	assert.Equal(t, 6, res.ReplacedCount())
	assert.Equal(t, []string{"first", "second", "third"}, res.Errors())
}
