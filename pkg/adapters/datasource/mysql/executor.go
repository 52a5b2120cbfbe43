package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/logging"
)

// MySQL server error numbers that are safe to retry.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// charsetNamePattern bounds what may be interpolated into SET NAMES.
var charsetNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// QueryExecutor runs search and replace statements against MySQL.
//
// Session state set by PrepareTable is per connection, so every Query and
// Begin takes a dedicated connection from the pool and applies the current
// SET NAMES statement to it first. A search cursor and an update
// transaction therefore never share a connection. Connections go back to
// the pool with the session defaults restored.
type QueryExecutor struct {
	*Adapter

	defaults string // SET NAMES for the session defaults of a fresh connection

	mu       sync.Mutex
	setNames string
}

// NewQueryExecutor creates a MySQL query executor and records the session
// character set of a fresh connection.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*QueryExecutor, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, logger)
	if err != nil {
		return nil, err
	}

	var session datasource.TableCharset
	err = adapter.db.QueryRowContext(ctx, "SELECT @@character_set_client, @@collation_connection").
		Scan(&session.Charset, &session.Collation)
	if err != nil {
		adapter.Close()
		return nil, classify(fmt.Errorf("read session character set: %w", err))
	}
	defaults, err := setNamesStatement(session)
	if err != nil {
		adapter.Close()
		return nil, err
	}

	return &QueryExecutor{Adapter: adapter, defaults: defaults, setNames: defaults}, nil
}

func (e *QueryExecutor) Dialect() string {
	return datasource.DialectMySQL
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (e *QueryExecutor) QualifiedTable(database, table string) string {
	if database == "" {
		return e.QuoteIdentifier(table)
	}
	return e.QuoteIdentifier(database) + "." + e.QuoteIdentifier(table)
}

func (e *QueryExecutor) Placeholder(int) string {
	return "?"
}

// PrepareTable records the SET NAMES statement for the table's character set
// and verifies the server accepts it. A default charset selects the session
// defaults recorded at startup.
func (e *QueryExecutor) PrepareTable(ctx context.Context, table datasource.TableCharset) error {
	stmt, err := sessionStatement(table, e.defaults)
	if err != nil {
		return err
	}

	if stmt != "" && stmt != e.defaults {
		conn, err := e.db.Conn(ctx)
		if err != nil {
			return classify(fmt.Errorf("acquire connection: %w", err))
		}
		_, err = conn.ExecContext(ctx, stmt)
		if relErr := e.release(conn, stmt)(); err == nil && relErr != nil {
			err = relErr
		}
		if err != nil {
			return classify(fmt.Errorf("%s: %w", stmt, err))
		}
	}

	e.mu.Lock()
	e.setNames = stmt
	e.mu.Unlock()

	e.logger.Debug("prepared session", zap.String("statement", stmt))
	return nil
}

// sessionStatement picks the statement PrepareTable records for a table. A
// table without an explicit character set gets the session defaults, so a
// previous table's charset never carries over.
func sessionStatement(table datasource.TableCharset, defaults string) (string, error) {
	if table.IsDefault() {
		return defaults, nil
	}
	return setNamesStatement(table)
}

// setNamesStatement returns the statement for c, or "" when c is the default.
// A missing charset is taken from the collation prefix (utf8mb4_unicode_ci).
func setNamesStatement(c datasource.TableCharset) (string, error) {
	if c.IsDefault() {
		return "", nil
	}
	charset, collation := c.Charset, c.Collation
	if collation == "DEFAULT" {
		collation = ""
	}
	if charset == "" || charset == "DEFAULT" {
		charset, _, _ = strings.Cut(collation, "_")
	}

	for _, name := range []string{charset, collation} {
		if name != "" && !charsetNamePattern.MatchString(name) {
			return "", fmt.Errorf("invalid character set or collation name %q", name)
		}
	}

	if collation == "" {
		return fmt.Sprintf("SET NAMES '%s'", charset), nil
	}
	return fmt.Sprintf("SET NAMES '%s' COLLATE '%s'", charset, collation), nil
}

// conn takes a dedicated connection with the current session state applied.
// The returned func hands it back to the pool.
func (e *QueryExecutor) conn(ctx context.Context) (*sql.Conn, func() error, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, nil, classify(fmt.Errorf("acquire connection: %w", err))
	}

	e.mu.Lock()
	stmt := e.setNames
	e.mu.Unlock()

	if stmt != "" {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, nil, classify(fmt.Errorf("%s: %w", stmt, err))
		}
	}
	return conn, e.release(conn, stmt), nil
}

// release returns a func that restores the session defaults on conn when
// applied differs from them, then closes it. A failed restore discards the
// connection instead of pooling it.
func (e *QueryExecutor) release(conn *sql.Conn, applied string) func() error {
	return func() error {
		if applied != e.defaults && e.defaults != "" {
			if _, err := conn.ExecContext(context.Background(), e.defaults); err != nil {
				e.logger.Warn("restore session defaults failed", zap.Error(err))
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			}
		}
		return conn.Close()
	}
}

// Query streams rows from a dedicated connection released when the
// iterator closes.
func (e *QueryExecutor) Query(ctx context.Context, query string, args ...any) (datasource.RowIterator, error) {
	conn, release, err := e.conn(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query", zap.String("sql", logging.SanitizeQuery(query)), zap.Int("args", len(args)))
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		release()
		return nil, classify(fmt.Errorf("query: %w", err))
	}

	it, err := datasource.NewSQLRowIterator(rows, release)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (e *QueryExecutor) QueryScalar(ctx context.Context, query string, args ...any) (int64, error) {
	conn, release, err := e.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var v sql.NullInt64
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, classify(fmt.Errorf("query scalar: %w", err))
	}
	return v.Int64, nil
}

// Begin opens a transaction on a dedicated connection released on commit or
// rollback.
func (e *QueryExecutor) Begin(ctx context.Context) (datasource.Tx, error) {
	conn, release, err := e.conn(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		release()
		return nil, classify(fmt.Errorf("begin transaction: %w", err))
	}
	return &txn{SQLTx: datasource.NewSQLTx(tx, release)}, nil
}

// txn classifies driver errors from statements and commits.
type txn struct {
	*datasource.SQLTx
}

func (t *txn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	n, err := t.SQLTx.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(fmt.Errorf("exec: %w", err))
	}
	return n, nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.SQLTx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// transientError marks deadlocks and lock wait timeouts as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string     { return e.err.Error() }
func (e *transientError) Unwrap() error     { return e.err }
func (e *transientError) IsRetryable() bool { return true }

// classify wraps MySQL lock errors so retry.IsRetryable recognizes them by
// number rather than message.
func classify(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDeadlock, errLockWaitTimeout:
			return &transientError{err: err}
		}
	}
	return err
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
