package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/grepdb/pkg/config"
	"github.com/ekaya-inc/grepdb/pkg/models"
)

const singleTableDump = "../sqldump/testdata/single_table.sql"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand("1.2.3", &out)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, "schema", singleTableDump)
	require.NoError(t, err)

	var views []tableView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, singleTableDump, v.Database)
	assert.Equal(t, "test_table_1", v.Table)
	assert.Equal(t, "InnoDB", v.Engine)
	assert.Equal(t, "latin1", v.Charset)
	assert.Equal(t, models.DefaultTableOption, v.Collation)
	assert.Equal(t, []string{"test_pk"}, v.PrimaryKey)
	require.Len(t, v.Columns, 10)
	assert.Equal(t, "test_varchar", v.Columns[1].ColumnName)
	require.NotNil(t, v.Columns[1].MaxLength)
	assert.Equal(t, 255, *v.Columns[1].MaxLength)
}

func TestSchemaCommand_DatabaseOverride(t *testing.T) {
	out, err := run(t, "schema", "--database", "wordpress", singleTableDump)
	require.NoError(t, err)
	assert.Contains(t, out, "database: wordpress")
	assert.NotContains(t, out, singleTableDump)
}

func TestSchemaCommand_MissingFile(t *testing.T) {
	_, err := run(t, "schema", "testdata/does_not_exist.sql")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "grepdb 1.2.3 "), out)
}

func TestSearchCommand_RequiresTerm(t *testing.T) {
	_, err := run(t, "search")
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	a := &app{flags: globalFlags{
		dsType:    "postgres",
		host:      "db.internal",
		port:      5433,
		database:  "blog",
		logFormat: "json",
	}}
	cfg := &config.Config{
		Datasource: config.DatasourceConfig{Type: "mysql", Host: "localhost", Port: 3306, User: "root"},
		Log:        config.LogConfig{Level: "info", Format: "console"},
	}

	a.applyFlags(cfg)

	assert.Equal(t, "postgres", cfg.Datasource.Type)
	assert.Equal(t, "db.internal", cfg.Datasource.Host)
	assert.Equal(t, 5433, cfg.Datasource.Port)
	assert.Equal(t, "root", cfg.Datasource.User, "unset flags keep the loaded value")
	assert.Equal(t, "blog", cfg.Datasource.Database)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestRetryConfig(t *testing.T) {
	a := &app{cfg: &config.Config{}}
	assert.Equal(t, 0, a.retryConfig().MaxRetries)

	a.cfg.Connection.RetryAttempts = 5
	assert.Equal(t, 5, a.retryConfig().MaxRetries)
}

func postsTable() *models.TableMetadata {
	return models.NewTableMetadata("blog", "posts", "InnoDB", "utf8mb4_general_ci", "utf8mb4", 2, []*models.ColumnMetadata{
		models.NewColumnMetadata("blog", "posts", "id", "int", nil, true, false, true),
		models.NewColumnMetadata("blog", "posts", "title", "varchar(64)", models.IntPtr(64), false, true, false),
		models.NewColumnMetadata("blog", "posts", "body", "text", models.IntPtr(65535), false, true, false),
	})
}

func str(s string) *string { return &s }

func TestFormatSearchRow(t *testing.T) {
	table := postsTable()
	title, _ := table.Column("title")
	body, _ := table.Column("body")
	id, _ := table.Column("id")

	row := models.NewKeyedRowSearchResult(table, []models.FieldSearchResult{
		{Column: title, Value: "hello"},
		{Column: body, Value: "hello world"},
	}, []models.KeyValue{{Column: id, Value: str("5")}})

	assert.Equal(t, "blog.posts pk=5 columns=title,body", formatSearchRow(row))
}

func TestFormatSearchRow_NoPrimaryKey(t *testing.T) {
	table := postsTable()
	title, _ := table.Column("title")
	row := models.NewRowSearchResult(table, []models.FieldSearchResult{{Column: title, Value: "hello"}}, nil, nil)

	assert.Equal(t, "blog.posts columns=title", formatSearchRow(row))
}

func TestFormatReplaceRow(t *testing.T) {
	table := postsTable()
	title, _ := table.Column("title")
	id, _ := table.Column("id")
	search := models.NewKeyedRowSearchResult(table, []models.FieldSearchResult{{Column: title, Value: "hello"}},
		[]models.KeyValue{{Column: id, Value: str("7")}})

	t.Run("updated", func(t *testing.T) {
		row := &models.RowReplaceResult{
			Search: search,
			Fields: []models.FieldReplaceResult{{Column: title, ReplacedCount: 2, OldValue: "hello", NewValue: "bye"}},
			Update: &models.UpdateStatement{Assignments: []string{"title"}, KeyColumns: []string{"id"}},
		}
		assert.Equal(t, "blog.posts pk=7 replaced=2 columns=title", formatReplaceRow(row))
	})

	t.Run("unchanged", func(t *testing.T) {
		row := &models.RowReplaceResult{Search: search}
		assert.Empty(t, formatReplaceRow(row))
	})

	t.Run("errors", func(t *testing.T) {
		row := &models.RowReplaceResult{
			Search: search,
			Errors: []string{"too long"},
			Fields: []models.FieldReplaceResult{{Column: title, Errors: []string{"not found"}}},
		}
		assert.Equal(t, "blog.posts pk=7\n  too long\n  not found", formatReplaceRow(row))
	})
}

func TestScopeTables(t *testing.T) {
	posts := postsTable()
	other := models.NewTableMetadata("blog", "comments", "", "", "", 0, nil)
	db := models.NewDatabaseMetadata("blog", []*models.TableMetadata{posts, other})

	sc := &scope{databases: []*models.DatabaseMetadata{db}}
	assert.Len(t, sc.tables(), 2)

	sc = &scope{table: posts}
	assert.Equal(t, []*models.TableMetadata{posts}, sc.tables())
}

func TestFormatReplaceRow_TruncatesLongErrors(t *testing.T) {
	table := postsTable()
	row := &models.RowReplaceResult{
		Search: models.NewRowSearchResult(table, nil, nil, nil),
		Errors: []string{strings.Repeat("x", maxErrorLineLength+50)},
	}

	lines := strings.Split(formatReplaceRow(row), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "  "+strings.Repeat("x", maxErrorLineLength)+"...", lines[1])
}
