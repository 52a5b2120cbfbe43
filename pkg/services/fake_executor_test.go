package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/models"
)

// fakeExecutor serves every row of a table for any SELECT naming it, leaving
// the LIKE filtering to the in-memory verification. Statements are recorded.
type fakeExecutor struct {
	dialect string
	tables  map[string][]datasource.Row // keyed by qualified table name

	queries   []string
	queryArgs [][]any
	execs     []execCall
	prepared  []datasource.TableCharset
	begins    int
	commits   int
	rollbacks int
	count     int64

	queryErr error
	execErr  error
}

type execCall struct {
	sql  string
	args []any
}

func newFakeExecutor(dialect string) *fakeExecutor {
	return &fakeExecutor{dialect: dialect, tables: map[string][]datasource.Row{}}
}

func (f *fakeExecutor) addRows(table *models.TableMetadata, rows ...datasource.Row) {
	key := f.QualifiedTable(table.DatabaseName, table.TableName)
	f.tables[key] = append(f.tables[key], rows...)
}

func (f *fakeExecutor) Dialect() string { return f.dialect }

func (f *fakeExecutor) QuoteIdentifier(name string) string {
	switch f.dialect {
	case datasource.DialectPostgres:
		return `"` + name + `"`
	case datasource.DialectMSSQL:
		return "[" + name + "]"
	}
	return "`" + name + "`"
}

func (f *fakeExecutor) QualifiedTable(database, table string) string {
	if database == "" {
		return f.QuoteIdentifier(table)
	}
	return f.QuoteIdentifier(database) + "." + f.QuoteIdentifier(table)
}

func (f *fakeExecutor) Placeholder(n int) string {
	switch f.dialect {
	case datasource.DialectPostgres:
		return fmt.Sprintf("$%d", n)
	case datasource.DialectMSSQL:
		return fmt.Sprintf("@p%d", n)
	}
	return "?"
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (datasource.RowIterator, error) {
	f.queries = append(f.queries, query)
	f.queryArgs = append(f.queryArgs, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	for key, rows := range f.tables {
		if strings.Contains(query, " FROM "+key+" ") {
			return &fakeRows{rows: rows, pos: -1}, nil
		}
	}
	return &fakeRows{pos: -1}, nil
}

func (f *fakeExecutor) QueryScalar(_ context.Context, query string, args ...any) (int64, error) {
	f.queries = append(f.queries, query)
	f.queryArgs = append(f.queryArgs, args)
	if f.queryErr != nil {
		return 0, f.queryErr
	}
	return f.count, nil
}

func (f *fakeExecutor) Begin(context.Context) (datasource.Tx, error) {
	f.begins++
	return &fakeTx{exec: f}, nil
}

func (f *fakeExecutor) PrepareTable(_ context.Context, table datasource.TableCharset) error {
	f.prepared = append(f.prepared, table)
	return nil
}

func (f *fakeExecutor) Close() error { return nil }

// openTx returns begun transactions not yet committed or rolled back.
func (f *fakeExecutor) openTx() int {
	return f.begins - f.commits - f.rollbacks
}

type fakeTx struct {
	exec *fakeExecutor
	done bool
}

func (t *fakeTx) Exec(_ context.Context, query string, args ...any) (int64, error) {
	if t.done {
		return 0, errors.New("transaction finished")
	}
	if t.exec.execErr != nil {
		return 0, t.exec.execErr
	}
	t.exec.execs = append(t.exec.execs, execCall{sql: query, args: args})
	return 1, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return errors.New("transaction finished")
	}
	t.done = true
	t.exec.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return errors.New("transaction finished")
	}
	t.done = true
	t.exec.rollbacks++
	return nil
}

type fakeRows struct {
	rows   []datasource.Row
	pos    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Columns() []string { return nil }

func (r *fakeRows) Row() datasource.Row { return r.rows[r.pos] }

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func str(v string) *string {
	return &v
}

// postsTable has an int primary key, a sized title and two text columns.
func postsTable() *models.TableMetadata {
	return models.NewTableMetadata("blog", "posts", "InnoDB", "utf8mb4_unicode_ci", "utf8mb4", 4, []*models.ColumnMetadata{
		models.NewColumnMetadata("blog", "posts", "id", "int(10) unsigned", nil, true, false, true),
		models.NewColumnMetadata("blog", "posts", "title", "varchar(10)", models.IntPtr(10), false, false, false),
		models.NewColumnMetadata("blog", "posts", "comment", "text", models.IntPtr(65535), false, true, false),
		models.NewColumnMetadata("blog", "posts", "views", "int(11)", nil, false, true, false),
	})
}

// optionsTable has no primary key.
func optionsTable() *models.TableMetadata {
	return models.NewTableMetadata("blog", "options", "InnoDB", "latin1_swedish_ci", "latin1", 3, []*models.ColumnMetadata{
		models.NewColumnMetadata("blog", "options", "name", "varchar(64)", models.IntPtr(64), false, false, false),
		models.NewColumnMetadata("blog", "options", "value", "longtext", nil, false, true, false),
	})
}

// countersTable has no searchable columns.
func countersTable() *models.TableMetadata {
	return models.NewTableMetadata("blog", "counters", "InnoDB", "DEFAULT", "DEFAULT", 2, []*models.ColumnMetadata{
		models.NewColumnMetadata("blog", "counters", "id", "int(11)", nil, true, false, true),
		models.NewColumnMetadata("blog", "counters", "hits", "bigint(20)", nil, false, false, false),
	})
}

func postRow(id, title, comment string) datasource.Row {
	return datasource.Row{"id": str(id), "title": str(title), "comment": str(comment)}
}
