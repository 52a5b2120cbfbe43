package sqldump

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/grepdb/pkg/models"
)

type expectedColumn struct {
	name       string
	columnType string
	maxLength  *int
	primary    bool
	nullable   bool
	indexed    bool
}

func assertTable(t *testing.T, table *models.TableMetadata, db, name, engine, collation, charset string, columns []expectedColumn) {
	t.Helper()

	assert.Equal(t, db, table.DatabaseName)
	assert.Equal(t, name, table.TableName)
	assert.Equal(t, engine, table.Engine)
	assert.Equal(t, collation, table.Collation)
	assert.Equal(t, charset, table.Charset)
	assert.Equal(t, int64(-1), table.RowCount)
	require.Len(t, table.Columns(), len(columns))

	for _, want := range columns {
		col, err := table.Column(want.name)
		require.NoError(t, err, want.name)

		assert.Equal(t, db, col.DatabaseName, want.name)
		assert.Equal(t, name, col.TableName, want.name)
		assert.Equal(t, want.columnType, col.Type, want.name)
		assert.Equal(t, want.maxLength, col.MaxLength, want.name)
		assert.Equal(t, want.primary, col.IsPrimaryKey, want.name)
		assert.Equal(t, want.nullable, col.IsNullable, want.name)
		assert.Equal(t, want.indexed, col.IsIndexed, want.name)
	}
}

var testTable1Columns = []expectedColumn{
	{"test_pk", "int(11)", nil, true, false, true},
	{"test_varchar", "varchar(255)", models.IntPtr(255), false, true, true},
	{"test_text", "text", models.IntPtr(65535), false, true, false},
	{"test_date", "date", nil, false, true, false},
	{"test_unique", "varchar(1024)", models.IntPtr(1024), false, true, true},
	{"test_decimal", "decimal(10,2)", nil, false, true, false},
	{"test_float", "float", nil, false, true, false},
	{"test_double", "double", nil, false, true, true},
	{"test_blob", "blob", models.IntPtr(65535), false, true, false},
	{"test_bigint", "bigint(20)", nil, false, true, false},
}

var compoundPKColumns = []expectedColumn{
	{"column_1_pk", "int(11)", nil, true, false, true},
	{"column_2_pk", "int(11)", nil, true, false, true},
	{"column_data", "varchar(512)", models.IntPtr(512), false, true, false},
}

func TestParseSingleTable(t *testing.T) {
	path := "testdata/single_table.sql"
	tables, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	assertTable(t, tables[0], path, "test_table_1", "InnoDB", "DEFAULT", "latin1", testTable1Columns)
	assert.Equal(t, []string{
		"test_pk", "test_varchar", "test_text", "test_date", "test_unique",
		"test_decimal", "test_float", "test_double", "test_blob", "test_bigint",
	}, tables[0].ColumnNames(), "columns keep definition order")
}

func TestParseCompoundPrimaryKey(t *testing.T) {
	path := "testdata/single_table_compound_pk.sql"
	tables, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	assertTable(t, tables[0], path, "test_table_compound_pk", "InnoDB", "DEFAULT", "latin1", compoundPKColumns)
	assert.Len(t, tables[0].PrimaryKeyColumns(), 2)
	assert.Equal(t, "column_1_pk", tables[0].PrimaryKey().ColumnName)
}

func TestParseTwoTables(t *testing.T) {
	path := "testdata/two_tables.sql"
	tables, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assertTable(t, tables[0], path, "test_table_1", "InnoDB", "DEFAULT", "latin1", testTable1Columns)
	assertTable(t, tables[1], path, "test_table_compound_pk", "InnoDB", "DEFAULT", "latin1", compoundPKColumns)
}

func TestParseSingleTableWithSetStatements(t *testing.T) {
	path := "testdata/single_table_includes_set_statements.sql"
	tables, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	assertTable(t, tables[0], path, "table_with_collation", "InnoDB", "utf8mb4_unicode_520_ci", "utf8mb4", []expectedColumn{
		{"item_id", "bigint(20)", nil, true, false, true},
		{"comment_id", "bigint(20)", nil, false, false, true},
		{"collate_varchar", "varchar(255)", models.IntPtr(255), false, true, true},
		{"collate_text", "longtext", nil, false, true, false},
	})
}

func TestParser_Streams(t *testing.T) {
	reader, err := ParseAllTableMetadata("testdata/two_tables.sql")
	require.NoError(t, err)
	defer reader.Close()

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "test_table_1", first.TableName)

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "test_table_compound_pk", second.TableName)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParser_TableWithoutKeys(t *testing.T) {
	input := "CREATE TABLE `notes` (\n  `body` text,\n  `title` char(20) NOT NULL\n) ENGINE=MyISAM;"
	p := NewParser(NewTokenizer(strings.NewReader(input)), "offline")

	table, err := p.Next()
	require.NoError(t, err)

	assert.Equal(t, "MyISAM", table.Engine)
	assert.Equal(t, models.DefaultTableOption, table.Charset)
	assert.Nil(t, table.PrimaryKey())
	require.Len(t, table.Columns(), 2)

	title, err := table.Column("title")
	require.NoError(t, err)
	assert.False(t, title.IsNullable)
	assert.Nil(t, title.MaxLength, "only VARCHAR, TEXT and BLOB carry a length")
}

func TestParser_QuotedOptionsAndEnums(t *testing.T) {
	input := "CREATE TABLE `users` (\n" +
		"  `id` int(11) NOT NULL,\n" +
		"  `status` enum('in stock','sold out') NOT NULL DEFAULT 'in stock',\n" +
		"  `email` varchar(191) COMMENT 'login, unique',\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='user accounts';"
	p := NewParser(NewTokenizer(strings.NewReader(input)), "app")

	table, err := p.Next()
	require.NoError(t, err)

	assertTable(t, table, "app", "users", "InnoDB", models.DefaultTableOption, "utf8mb4", []expectedColumn{
		{"id", "int(11)", nil, true, false, true},
		{"status", "enum('in stock','sold out')", nil, false, false, false},
		{"email", "varchar(191)", models.IntPtr(191), false, true, false},
	})
	assert.Equal(t, []string{"id", "status", "email"}, table.ColumnNames())
}

func TestParser_SkipsConstraints(t *testing.T) {
	input := "CREATE TABLE `orders` (\n" +
		"  `id` int(11) NOT NULL,\n" +
		"  `customer_id` int(11) DEFAULT NULL,\n" +
		"  PRIMARY KEY (`id`),\n" +
		"  CONSTRAINT `fk_customer` FOREIGN KEY (`customer_id`) REFERENCES `customers` (`id`) ON DELETE CASCADE\n" +
		") ENGINE=InnoDB;"
	p := NewParser(NewTokenizer(strings.NewReader(input)), "shop")

	table, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "customer_id"}, table.ColumnNames())
}

func TestParser_PropagatesSyntaxErrors(t *testing.T) {
	p := NewParser(NewTokenizer(strings.NewReader("CREATE TABLE `t` (`a` widget);")), "db")

	_, err := p.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKeyword))
}

func TestParseAllTableMetadata_MissingFile(t *testing.T) {
	_, err := ParseAllTableMetadata("testdata/missing.sql")
	require.Error(t, err)
}

func TestMaxLength(t *testing.T) {
	assert.Equal(t, models.IntPtr(255), maxLength("varchar(255)"))
	assert.Equal(t, models.IntPtr(65535), maxLength("TEXT"))
	assert.Nil(t, maxLength("longtext"))
	assert.Nil(t, maxLength("int(11)"))
	assert.Nil(t, maxLength("varchar(abc)"))
	assert.Nil(t, maxLength("char(20)"))
	assert.Nil(t, maxLength("enum('a','b')"))
}
