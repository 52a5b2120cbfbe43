//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
)

// SQL Server error numbers that are safe to retry.
const (
	errDeadlockVictim     = 1205
	errLockRequestTimeout = 1222
)

// QueryExecutor runs search and replace statements against SQL Server.
// The database argument of QualifiedTable is a schema.
type QueryExecutor struct {
	*Adapter
}

// NewQueryExecutor creates a SQL Server query executor.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*QueryExecutor, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, logger)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{Adapter: adapter}, nil
}

func (e *QueryExecutor) Dialect() string {
	return datasource.DialectMSSQL
}

// QuoteIdentifier safely quotes a SQL Server identifier using square brackets.
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return quoteName(name)
}

func (e *QueryExecutor) QualifiedTable(schema, table string) string {
	return buildFullyQualifiedName(schema, table)
}

func (e *QueryExecutor) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

// PrepareTable is a no-op: parameters are sent as Unicode regardless of the
// table collation.
func (e *QueryExecutor) PrepareTable(context.Context, datasource.TableCharset) error {
	return nil
}

func (e *QueryExecutor) Query(ctx context.Context, query string, args ...any) (datasource.RowIterator, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("query: %w", err))
	}
	it, err := datasource.NewSQLRowIterator(rows, nil)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (e *QueryExecutor) QueryScalar(ctx context.Context, query string, args ...any) (int64, error) {
	var v sql.NullInt64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, classify(fmt.Errorf("query scalar: %w", err))
	}
	return v.Int64, nil
}

func (e *QueryExecutor) Begin(ctx context.Context) (datasource.Tx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("begin transaction: %w", err))
	}
	return &txn{SQLTx: datasource.NewSQLTx(tx, nil)}, nil
}

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

// transientError marks deadlock victims and lock timeouts as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string     { return e.err.Error() }
func (e *transientError) Unwrap() error     { return e.err }
func (e *transientError) IsRetryable() bool { return true }

func classify(err error) error {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case errDeadlockVictim, errLockRequestTimeout:
			return &transientError{err: err}
		}
	}
	return err
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
