package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/apperrors"
	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/replace"
	"github.com/ekaya-inc/grepdb/pkg/retry"
)

// DefaultBatchSize is the number of rows committed per transaction.
const DefaultBatchSize = 100

// ReplaceService rewrites a literal term inside matching rows.
//
// Rows are addressed by primary key. A table without one is updated by
// equality on the original values of every changed column, so duplicate rows
// that agree on all changed columns are updated together.
type ReplaceService interface {
	// ReplaceTable streams one result per matching row of table.
	ReplaceTable(ctx context.Context, table *models.TableMetadata, search, replacement string) (*RowReplaceIterator, error)

	// ReplaceDatabase streams one result per matching row of every table in db.
	ReplaceDatabase(ctx context.Context, db *models.DatabaseMetadata, search, replacement string) (*RowReplaceIterator, error)
}

// ReplaceOption configures a ReplaceService.
type ReplaceOption func(*replaceService)

// WithBatchSize sets the rows committed per transaction. Values below 1 are ignored.
func WithBatchSize(n int) ReplaceOption {
	return func(s *replaceService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithProgress registers a callback invoked at every batch boundary and when
// a table completes.
func WithProgress(fn func(models.TableReplaceResult)) ReplaceOption {
	return func(s *replaceService) {
		s.progress = fn
	}
}

// WithDryRun computes every result and UPDATE statement without opening
// transactions or executing them.
func WithDryRun(dryRun bool) ReplaceOption {
	return func(s *replaceService) {
		s.dryRun = dryRun
	}
}

// WithRetry retries cursor opens and transaction starts on transient errors.
func WithRetry(cfg *retry.Config) ReplaceOption {
	return func(s *replaceService) {
		if cfg != nil {
			s.retry = cfg
		}
	}
}

type replaceService struct {
	exec      datasource.QueryExecutor
	chain     *replace.Chain
	batchSize int
	progress  func(models.TableReplaceResult)
	dryRun    bool
	retry     *retry.Config
}

// NewReplaceService creates a replace service. A nil chain uses replace.DefaultChain.
func NewReplaceService(exec datasource.QueryExecutor, chain *replace.Chain, opts ...ReplaceOption) ReplaceService {
	if chain == nil {
		chain = replace.DefaultChain()
	}
	s := &replaceService{
		exec:      exec,
		chain:     chain,
		batchSize: DefaultBatchSize,
		retry:     retry.NoRetry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *replaceService) ReplaceTable(ctx context.Context, table *models.TableMetadata, search, replacement string) (*RowReplaceIterator, error) {
	if table == nil {
		return nil, fmt.Errorf("replace: nil table")
	}
	db := models.NewDatabaseMetadata(table.DatabaseName, []*models.TableMetadata{table})
	return s.iterator(db, []*models.TableMetadata{table}, search, replacement)
}

func (s *replaceService) ReplaceDatabase(ctx context.Context, db *models.DatabaseMetadata, search, replacement string) (*RowReplaceIterator, error) {
	if db == nil {
		return nil, fmt.Errorf("replace: nil database")
	}
	return s.iterator(db, db.Tables(), search, replacement)
}

func (s *replaceService) iterator(db *models.DatabaseMetadata, tables []*models.TableMetadata, search, replacement string) (*RowReplaceIterator, error) {
	if search == "" {
		return nil, apperrors.ErrEmptySearchTerm
	}
	it := &RowReplaceIterator{
		svc:         s,
		search:      search,
		replacement: replacement,
		summary:     &models.DatabaseReplaceResult{Database: db},
	}
	it.rows = &RowSearchIterator{
		exec:         s.exec,
		retry:        s.retry,
		term:         search,
		tables:       tables,
		onTableStart: it.startTable,
		onTableEnd:   it.endTable,
	}
	return it, nil
}

// RowReplaceIterator is a forward-only cursor over per-row replace results.
//
// A transaction opens when a table scan starts and commits every batch of
// rows. Stopping early and calling Close rolls back the open batch; earlier
// batches stay committed.
type RowReplaceIterator struct {
	svc         *replaceService
	search      string
	replacement string

	rows      *RowSearchIterator
	tx        datasource.Tx
	table     *models.TableReplaceResult
	batchRows int
	current   *models.RowReplaceResult
	summary   *models.DatabaseReplaceResult
	err       error
	closed    bool
}

// Next processes the next matching row and writes its UPDATE.
func (it *RowReplaceIterator) Next(ctx context.Context) bool {
	if it.closed || it.err != nil {
		return false
	}
	it.current = nil

	if !it.rows.Next(ctx) {
		if err := it.rows.Err(); err != nil {
			it.fail(ctx, err)
			return false
		}
		it.summary.Complete = true
		return false
	}

	result, err := it.replaceRow(ctx, it.rows.Result())
	if err != nil {
		it.fail(ctx, err)
		return false
	}
	it.record(result)

	if it.batchRows >= it.svc.batchSize {
		if err := it.commitBatch(ctx); err != nil {
			it.fail(ctx, err)
			return false
		}
		if err := it.begin(ctx); err != nil {
			it.fail(ctx, err)
			return false
		}
		it.report()
	}

	it.current = result
	return true
}

// Result returns the row Next advanced to.
func (it *RowReplaceIterator) Result() *models.RowReplaceResult {
	return it.current
}

// Err returns the error that terminated the iteration.
func (it *RowReplaceIterator) Err() error {
	return it.err
}

// Summary returns the running aggregate. It is complete once Next returns
// false with a nil Err.
func (it *RowReplaceIterator) Summary() *models.DatabaseReplaceResult {
	out := &models.DatabaseReplaceResult{
		Database: it.summary.Database,
		Complete: it.summary.Complete,
		Tables:   make([]models.TableReplaceResult, len(it.summary.Tables)),
	}
	for i, t := range it.summary.Tables {
		out.Tables[i] = copyTableResult(t)
	}
	return out
}

// Close rolls back the open transaction and releases the table cursor.
// It is safe to call more than once.
func (it *RowReplaceIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.current = nil

	var errs []error
	if err := it.rollback(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if err := it.rows.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (it *RowReplaceIterator) startTable(ctx context.Context, table *models.TableMetadata) error {
	it.summary.Tables = append(it.summary.Tables, models.TableReplaceResult{Table: table})
	it.table = &it.summary.Tables[len(it.summary.Tables)-1]
	it.batchRows = 0
	return it.begin(ctx)
}

// endTable commits a partial final batch. An empty one holds no writes and
// is rolled back.
func (it *RowReplaceIterator) endTable(ctx context.Context, _ *models.TableMetadata) error {
	if it.batchRows > 0 {
		if err := it.commitBatch(ctx); err != nil {
			return err
		}
	} else if err := it.rollback(ctx); err != nil {
		return err
	}
	it.table.Complete = true
	it.report()
	it.table = nil
	return nil
}

func (it *RowReplaceIterator) begin(ctx context.Context) error {
	if it.svc.dryRun {
		return nil
	}
	err := retry.DoIfRetryable(ctx, it.svc.retry, func() error {
		tx, err := it.svc.exec.Begin(ctx)
		if err != nil {
			return err
		}
		it.tx = tx
		return nil
	})
	if err != nil {
		return fmt.Errorf("begin %s: %w", it.table.Table.Key(), err)
	}
	return nil
}

func (it *RowReplaceIterator) commitBatch(ctx context.Context) error {
	it.batchRows = 0
	if it.tx == nil {
		return nil
	}
	tx := it.tx
	it.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", it.table.Table.Key(), err)
	}
	it.table.BatchesCommitted++
	return nil
}

func (it *RowReplaceIterator) rollback(ctx context.Context) error {
	if it.tx == nil {
		return nil
	}
	tx := it.tx
	it.tx = nil
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (it *RowReplaceIterator) fail(ctx context.Context, err error) {
	if rbErr := it.rollback(ctx); rbErr != nil {
		err = errors.Join(err, rbErr)
	}
	_ = it.rows.Close()
	it.err = err
}

func (it *RowReplaceIterator) report() {
	if it.svc.progress != nil && it.table != nil {
		it.svc.progress(copyTableResult(*it.table))
	}
}

func (it *RowReplaceIterator) record(result *models.RowReplaceResult) {
	it.batchRows++
	t := it.table
	t.RowsProcessed++
	if result.Update != nil {
		t.RowsUpdated++
		t.FieldsReplaced += len(result.Update.Assignments)
	}
	t.ReplacedCount += result.ReplacedCount()
	t.Errors = append(t.Errors, result.AllErrors()...)
}

// replaceRow runs every matched field through the chain, drops values that
// would overflow their column and writes the rest.
func (it *RowReplaceIterator) replaceRow(ctx context.Context, row *models.RowSearchResult) (*models.RowReplaceResult, error) {
	result := &models.RowReplaceResult{Search: row}

	for _, field := range row.Fields() {
		fr, err := it.svc.chain.Replace(field.Column, it.search, it.replacement, field.Value)
		if err != nil {
			return nil, fmt.Errorf("replace %s: %w", field.Column.Key(), err)
		}
		if fr.Changed() && overflows(field.Column, fr.NewValue) {
			result.Errors = append(result.Errors, overflowError(row, field))
			fr.NewValue = fr.OldValue
			fr.ReplacedCount = 0
		}
		result.Fields = append(result.Fields, fr)
	}

	stmt := buildUpdate(it.svc.exec, row, result.Fields)
	if stmt == nil {
		return result, nil
	}
	result.Update = stmt
	if it.svc.dryRun {
		return result, nil
	}

	n, err := it.tx.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", row.Table.Key(), err)
	}
	result.RowsAffected = n
	return result, nil
}

func overflows(col *models.ColumnMetadata, value string) bool {
	return col.MaxLength != nil && len(value) > *col.MaxLength
}

func overflowError(row *models.RowSearchResult, field models.FieldSearchResult) string {
	if row.HasPrimaryKey() {
		return fmt.Sprintf(`Error: value for column "%s" would be truncated (primary key "%s") in table "%s"`,
			field.Column.ColumnName, keyString(row), row.Table.TableName)
	}
	return fmt.Sprintf(`Error: value for column "%s" would be truncated (original value "%s") in table "%s"`,
		field.Column.ColumnName, field.Value, row.Table.TableName)
}

func keyString(row *models.RowSearchResult) string {
	keys := row.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Value != nil {
			parts = append(parts, *k.Value)
		}
	}
	return strings.Join(parts, ",")
}

// buildUpdate returns the UPDATE for the changed fields, or nil when none changed.
func buildUpdate(exec datasource.QueryExecutor, row *models.RowSearchResult, fields []models.FieldReplaceResult) *models.UpdateStatement {
	var changed []models.FieldReplaceResult
	for _, f := range fields {
		if f.Changed() {
			changed = append(changed, f)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	stmt := &models.UpdateStatement{}
	sets := make([]string, 0, len(changed))
	for _, f := range changed {
		stmt.Args = append(stmt.Args, f.NewValue)
		sets = append(sets, fmt.Sprintf("%s = %s", exec.QuoteIdentifier(f.Column.ColumnName), exec.Placeholder(len(stmt.Args))))
		stmt.Assignments = append(stmt.Assignments, f.Column.ColumnName)
	}

	var conds []string
	where := func(column, value string) {
		stmt.Args = append(stmt.Args, value)
		conds = append(conds, fmt.Sprintf("%s = %s", exec.QuoteIdentifier(column), exec.Placeholder(len(stmt.Args))))
		stmt.KeyColumns = append(stmt.KeyColumns, column)
	}
	if row.HasPrimaryKey() {
		for _, k := range row.Keys() {
			where(k.Column.ColumnName, *k.Value)
		}
	} else {
		for _, f := range changed {
			where(f.Column.ColumnName, f.OldValue)
		}
	}

	stmt.SQL = fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		exec.QualifiedTable(row.Table.DatabaseName, row.Table.TableName),
		strings.Join(sets, ", "),
		strings.Join(conds, " AND "))
	return stmt
}

func copyTableResult(t models.TableReplaceResult) models.TableReplaceResult {
	if t.Errors != nil {
		t.Errors = append([]string(nil), t.Errors...)
	}
	return t
}
