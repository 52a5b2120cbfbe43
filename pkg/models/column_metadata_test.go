package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/grepdb/pkg/apperrors"
)

func TestIsStringType(t *testing.T) {
	tests := []struct {
		columnType string
		want       bool
	}{
		{"varchar(255)", true},
		{"VARCHAR(10)", true},
		{"  char(3) ", true},
		{"text", true},
		{"tinytext", true},
		{"mediumtext", true},
		{"longtext", true},
		{"blob", true},
		{"longblob", true},
		{"int(11)", false},
		{"bigint(20) unsigned", false},
		{"decimal(10,2)", false},
		{"datetime", false},
		{"json", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.columnType, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStringType(tt.columnType))
		})
	}
}

func TestNewColumnMetadata_CopiesMaxLength(t *testing.T) {
	n := 10
	col := NewColumnMetadata("db", "posts", "title", "varchar(10)", &n, false, true, false)
	n = 99

	require.NotNil(t, col.MaxLength)
	assert.Equal(t, 10, *col.MaxLength)
	assert.Equal(t, "db.posts.title", col.Key())
	assert.True(t, col.HasMaxLength())
}

func newTestTable() *TableMetadata {
	return NewTableMetadata("db", "posts", "InnoDB", "utf8mb4_general_ci", "utf8mb4", 42, []*ColumnMetadata{
		NewColumnMetadata("db", "posts", "id", "int(11)", nil, true, false, true),
		NewColumnMetadata("db", "posts", "title", "varchar(255)", IntPtr(255), false, true, true),
		NewColumnMetadata("db", "posts", "body", "longtext", nil, false, true, false),
		NewColumnMetadata("db", "posts", "title", "int(11)", nil, false, false, false),
		NewColumnMetadata("db", "posts", "views", "int(11)", nil, false, false, false),
	})
}

func TestTableMetadata_ColumnOrderAndDuplicates(t *testing.T) {
	table := newTestTable()

	assert.Equal(t, []string{"id", "title", "body", "views"}, table.ColumnNames())

	title, err := table.Column("title")
	require.NoError(t, err)
	assert.Equal(t, "varchar(255)", title.Type, "first column with a given name wins")
}

func TestTableMetadata_ColumnNotFound(t *testing.T) {
	table := newTestTable()

	_, err := table.Column("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.False(t, table.HasColumn("missing"))
}

func TestTableMetadata_Predicates(t *testing.T) {
	table := newTestTable()

	assert.True(t, table.HasStringTypeColumn())
	require.NotNil(t, table.PrimaryKey())
	assert.Equal(t, "id", table.PrimaryKey().ColumnName)

	var names []string
	for _, c := range table.StringColumns() {
		names = append(names, c.ColumnName)
	}
	assert.Equal(t, []string{"title", "body"}, names)
}

func TestTableMetadata_NoPrimaryKeyNoStrings(t *testing.T) {
	table := NewTableMetadata("db", "counters", DefaultTableOption, DefaultTableOption, DefaultTableOption, UnknownRowCount, []*ColumnMetadata{
		NewColumnMetadata("db", "counters", "hits", "bigint(20)", nil, false, false, false),
	})

	assert.Nil(t, table.PrimaryKey())
	assert.Empty(t, table.PrimaryKeyColumns())
	assert.False(t, table.HasStringTypeColumn())
	assert.False(t, table.HasExplicitCharset())
}

func TestTableMetadata_ColumnsReturnsCopy(t *testing.T) {
	table := newTestTable()

	cols := table.Columns()
	cols[0] = nil

	assert.NotNil(t, table.Columns()[0])
}

func TestTableMetadata_WithDatabaseName(t *testing.T) {
	table := newTestTable()

	rebound := table.WithDatabaseName("live")

	assert.Equal(t, "live", rebound.DatabaseName)
	for _, c := range rebound.Columns() {
		assert.Equal(t, "live", c.DatabaseName)
	}
	for _, c := range table.Columns() {
		assert.Equal(t, "db", c.DatabaseName, "original must be unchanged")
	}
}

func TestDatabaseMetadata_Lookup(t *testing.T) {
	posts := newTestTable()
	db := NewDatabaseMetadata("db", []*TableMetadata{posts, posts})

	require.Len(t, db.Tables(), 1)

	got, err := db.Table("posts")
	require.NoError(t, err)
	assert.Same(t, posts, got)

	_, err = db.Table("users")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestServerMetadata_Lookup(t *testing.T) {
	one := NewDatabaseMetadata("one", nil)
	two := NewDatabaseMetadata("two", nil)
	srv := NewServerMetadata("localhost", []*DatabaseMetadata{one, two})

	require.Len(t, srv.Databases(), 2)
	assert.Equal(t, "one", srv.Databases()[0].DatabaseName)

	_, err := srv.Database("three")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRowSearchResult_FieldsAreUnique(t *testing.T) {
	table := newTestTable()
	title, _ := table.Column("title")
	pk := table.PrimaryKey()
	pkValue := "7"

	row := NewRowSearchResult(table, []FieldSearchResult{
		{Column: title, Value: "first"},
		{Column: title, Value: "second"},
	}, pk, &pkValue)

	assert.Equal(t, 1, row.FieldCount())
	f, ok := row.Field("title")
	require.True(t, ok)
	assert.Equal(t, "first", f.Value)
	assert.True(t, row.HasPrimaryKey())
}

func TestRowReplaceResult_Aggregates(t *testing.T) {
	r := &RowReplaceResult{
		Errors: []string{"row"},
		Fields: []FieldReplaceResult{
			{ReplacedCount: 2, Errors: []string{"a"}},
			{ReplacedCount: 1},
		},
	}

	assert.Equal(t, 3, r.ReplacedCount())
	assert.Equal(t, []string{"row", "a"}, r.AllErrors())
}

func TestNewKeyedRowSearchResult_CompoundKey(t *testing.T) {
	table := NewTableMetadata("db", "post_tags", "InnoDB", "", "", 2, []*ColumnMetadata{
		NewColumnMetadata("db", "post_tags", "post_id", "int", nil, true, false, true),
		NewColumnMetadata("db", "post_tags", "tag", "varchar(20)", IntPtr(20), true, false, true),
		NewColumnMetadata("db", "post_tags", "label", "varchar(50)", IntPtr(50), false, true, false),
	})
	postID, _ := table.Column("post_id")
	tag, _ := table.Column("tag")
	label, _ := table.Column("label")
	id, tagValue := "3", "news"

	row := NewKeyedRowSearchResult(table, []FieldSearchResult{{Column: label, Value: "old news"}}, []KeyValue{
		{Column: postID, Value: &id},
		{Column: tag, Value: &tagValue},
	})
	id = "9"

	require.True(t, row.HasPrimaryKey())
	assert.Equal(t, "post_id", row.PrimaryKey.ColumnName)
	assert.Equal(t, "3", *row.PrimaryKeyValue)

	keys := row.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, "3", *keys[0].Value)
	assert.Equal(t, "tag", keys[1].Column.ColumnName)
	assert.Equal(t, "news", *keys[1].Value)
}

func TestNewKeyedRowSearchResult_NullKeyPart(t *testing.T) {
	table := newTestTable()
	pk := table.PrimaryKey()
	title, _ := table.Column("title")
	id := "1"

	row := NewKeyedRowSearchResult(table, nil, []KeyValue{{Column: pk, Value: &id}, {Column: title}})
	assert.False(t, row.HasPrimaryKey())

	none := NewKeyedRowSearchResult(table, nil, nil)
	assert.False(t, none.HasPrimaryKey())
	assert.Nil(t, none.Keys())
}
