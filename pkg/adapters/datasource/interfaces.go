package datasource

import "context"

// Dialect names used as registry keys.
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectMSSQL    = "mssql"
)

// CatalogReader lists the databases, tables and columns of a server.
// Each implementation owns its connection and must be closed when done.
type CatalogReader interface {
	// Host identifies the server the catalog describes.
	Host() string

	// ListDatabases returns user databases (system catalogs excluded).
	ListDatabases(ctx context.Context) ([]string, error)

	// ListTables returns the base tables of a database.
	ListTables(ctx context.Context, database string) ([]TableInfo, error)

	// ListColumns returns the columns of a table in ordinal order.
	ListColumns(ctx context.Context, database, table string) ([]ColumnInfo, error)

	Close() error
}

// QueryExecutor runs the dialect-specific statements issued by search and replace.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Dialect returns the registry key of the adapter.
	Dialect() string

	// QuoteIdentifier safely quotes a SQL identifier (table, column, schema name).
	QuoteIdentifier(name string) string

	// QualifiedTable returns the quoted, database-qualified table name.
	QualifiedTable(database, table string) string

	// Placeholder returns the bind parameter marker for the nth (1-based) argument.
	Placeholder(n int) string

	// Query runs a SELECT and returns a cursor over its rows.
	Query(ctx context.Context, query string, args ...any) (RowIterator, error)

	// QueryScalar runs a query returning a single integer.
	QueryScalar(ctx context.Context, query string, args ...any) (int64, error)

	// Begin opens a transaction for UPDATE statements.
	Begin(ctx context.Context) (Tx, error)

	// PrepareTable sets session state (character set, collation) for statements
	// issued against a table from now on.
	PrepareTable(ctx context.Context, table TableCharset) error

	Close() error
}

// Tx is an open transaction.
type Tx interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RowIterator is a forward-only cursor over query results.
type RowIterator interface {
	Next() bool
	Columns() []string
	// Row returns the current row. It is valid until the next call to Next.
	Row() Row
	Err() error
	Close() error
}

// Row maps a result column name to its textual value. A nil value is SQL NULL.
type Row map[string]*string
