package datasource

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLRowIterator adapts *sql.Rows to RowIterator, scanning every column as
// nullable text. release, when set, runs once after the rows close.
type SQLRowIterator struct {
	rows    *sql.Rows
	columns []string
	values  []sql.NullString
	current Row
	release func() error
	closed  bool
	err     error
}

// NewSQLRowIterator wraps rows. On error the rows are closed and release is run.
func NewSQLRowIterator(rows *sql.Rows, release func() error) (*SQLRowIterator, error) {
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		if release != nil {
			_ = release()
		}
		return nil, fmt.Errorf("read result columns: %w", err)
	}
	return &SQLRowIterator{
		rows:    rows,
		columns: columns,
		values:  make([]sql.NullString, len(columns)),
		release: release,
	}, nil
}

func (it *SQLRowIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}

	dest := make([]any, len(it.values))
	for i := range it.values {
		dest[i] = &it.values[i]
	}
	if err := it.rows.Scan(dest...); err != nil {
		it.err = fmt.Errorf("scan row: %w", err)
		return false
	}

	row := make(Row, len(it.columns))
	for i, name := range it.columns {
		if it.values[i].Valid {
			v := it.values[i].String
			row[name] = &v
		} else {
			row[name] = nil
		}
	}
	it.current = row
	return true
}

func (it *SQLRowIterator) Columns() []string {
	return it.columns
}

func (it *SQLRowIterator) Row() Row {
	return it.current
}

func (it *SQLRowIterator) Err() error {
	return it.err
}

func (it *SQLRowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	err := it.rows.Close()
	if it.release != nil {
		if rerr := it.release(); err == nil {
			err = rerr
		}
	}
	return err
}

// SQLTx adapts *sql.Tx to Tx. release, when set, runs once after commit or
// rollback.
type SQLTx struct {
	tx      *sql.Tx
	release func() error
	done    bool
}

func NewSQLTx(tx *sql.Tx, release func() error) *SQLTx {
	return &SQLTx{tx: tx, release: release}
}

func (t *SQLTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (t *SQLTx) Commit(ctx context.Context) error {
	return t.finish(t.tx.Commit())
}

func (t *SQLTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		err = nil
	}
	return t.finish(err)
}

func (t *SQLTx) finish(err error) error {
	if !t.done {
		t.done = true
		if t.release != nil {
			if rerr := t.release(); err == nil {
				err = rerr
			}
		}
	}
	return err
}

var (
	_ RowIterator = (*SQLRowIterator)(nil)
	_ Tx          = (*SQLTx)(nil)
)
