//go:build postgres || all_adapters

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
)

// SQLSTATE codes that are safe to retry.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// QueryExecutor runs search and replace statements against PostgreSQL.
// The pool hands the cursor and the transaction separate connections.
type QueryExecutor struct {
	*Adapter
}

// NewQueryExecutor creates a PostgreSQL query executor.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*QueryExecutor, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, logger)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{Adapter: adapter}, nil
}

func (e *QueryExecutor) Dialect() string {
	return datasource.DialectPostgres
}

// QuoteIdentifier safely quotes a PostgreSQL identifier using pgx's built-in sanitization.
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QualifiedTable returns "schema"."table"; the database argument is a schema.
func (e *QueryExecutor) QualifiedTable(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func (e *QueryExecutor) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// PrepareTable is a no-op: the client encoding is UTF-8 for every table.
func (e *QueryExecutor) PrepareTable(context.Context, datasource.TableCharset) error {
	return nil
}

func (e *QueryExecutor) Query(ctx context.Context, query string, args ...any) (datasource.RowIterator, error) {
	rows, err := e.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("query: %w", err))
	}

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}
	return &rowIterator{rows: rows, columns: columns}, nil
}

func (e *QueryExecutor) QueryScalar(ctx context.Context, query string, args ...any) (int64, error) {
	var v *int64
	if err := e.pool.QueryRow(ctx, query, args...).Scan(&v); err != nil {
		return 0, classify(fmt.Errorf("query scalar: %w", err))
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (e *QueryExecutor) Begin(ctx context.Context) (datasource.Tx, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("begin transaction: %w", err))
	}
	return &txn{tx: tx}, nil
}

type txn struct {
	tx pgx.Tx
}

func (t *txn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(fmt.Errorf("exec: %w", err))
	}
	return tag.RowsAffected(), nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// rowIterator renders every value as text. NULL becomes a nil entry.
type rowIterator struct {
	rows    pgx.Rows
	columns []string
	current datasource.Row
	err     error
	closed  bool
}

func (it *rowIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.rows.Next() {
		it.err = classify(it.rows.Err())
		return false
	}

	values, err := it.rows.Values()
	if err != nil {
		it.err = fmt.Errorf("failed to read row values: %w", err)
		return false
	}

	row := make(datasource.Row, len(it.columns))
	for i, name := range it.columns {
		row[name] = textValue(values[i])
	}
	it.current = row
	return true
}

func (it *rowIterator) Columns() []string   { return it.columns }
func (it *rowIterator) Row() datasource.Row { return it.current }
func (it *rowIterator) Err() error          { return it.err }

func (it *rowIterator) Close() error {
	if !it.closed {
		it.closed = true
		it.rows.Close()
	}
	return nil
}

// textValue converts a decoded pgx value into the text the server would print.
func textValue(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case []byte:
		s = string(val)
	case [16]byte:
		s = uuid.UUID(val).String()
	case time.Time:
		s = val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	return &s
}

// transientError marks lock conflicts as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string     { return e.err.Error() }
func (e *transientError) Unwrap() error     { return e.err }
func (e *transientError) IsRetryable() bool { return true }

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return &transientError{err: err}
		}
	}
	return err
}

var (
	_ datasource.QueryExecutor = (*QueryExecutor)(nil)
	_ datasource.RowIterator   = (*rowIterator)(nil)
	_ datasource.Tx            = (*txn)(nil)
)
