package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/apperrors"
	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/retry"
)

// SearchService finds rows whose text columns contain a literal term.
type SearchService interface {
	// SearchTable streams the matching rows of one table.
	SearchTable(ctx context.Context, table *models.TableMetadata, term string) (*RowSearchIterator, error)

	// SearchDatabase streams the matching rows of every table in db, in table order.
	SearchDatabase(ctx context.Context, db *models.DatabaseMetadata, term string) (*RowSearchIterator, error)

	// SearchServer streams the matching rows of every database on srv.
	SearchServer(ctx context.Context, srv *models.ServerMetadata, term string) (*RowSearchIterator, error)

	// CountTable returns the number of rows the SQL filter admits for term.
	// It may exceed the rows SearchTable yields, since LIKE is case-insensitive.
	CountTable(ctx context.Context, table *models.TableMetadata, term string) (int64, error)
}

// SearchOption configures a SearchService.
type SearchOption func(*searchService)

// WithSearchRetry retries opening a table cursor on transient errors.
func WithSearchRetry(cfg *retry.Config) SearchOption {
	return func(s *searchService) {
		if cfg != nil {
			s.retry = cfg
		}
	}
}

type searchService struct {
	exec  datasource.QueryExecutor
	retry *retry.Config
}

// NewSearchService creates a search service over exec.
func NewSearchService(exec datasource.QueryExecutor, opts ...SearchOption) SearchService {
	s := &searchService{exec: exec, retry: retry.NoRetry()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *searchService) SearchTable(ctx context.Context, table *models.TableMetadata, term string) (*RowSearchIterator, error) {
	if table == nil {
		return nil, fmt.Errorf("search: nil table")
	}
	return s.iterator(term, []*models.TableMetadata{table})
}

func (s *searchService) SearchDatabase(ctx context.Context, db *models.DatabaseMetadata, term string) (*RowSearchIterator, error) {
	if db == nil {
		return nil, fmt.Errorf("search: nil database")
	}
	return s.iterator(term, db.Tables())
}

func (s *searchService) SearchServer(ctx context.Context, srv *models.ServerMetadata, term string) (*RowSearchIterator, error) {
	if srv == nil {
		return nil, fmt.Errorf("search: nil server")
	}
	var tables []*models.TableMetadata
	for _, db := range srv.Databases() {
		tables = append(tables, db.Tables()...)
	}
	return s.iterator(term, tables)
}

func (s *searchService) CountTable(ctx context.Context, table *models.TableMetadata, term string) (int64, error) {
	if term == "" {
		return 0, apperrors.ErrEmptySearchTerm
	}
	if !table.HasStringTypeColumn() {
		return 0, nil
	}

	where, args := whereClause(s.exec, table.StringColumns(), term)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s",
		s.exec.QualifiedTable(table.DatabaseName, table.TableName), where)

	var count int64
	err := retry.DoIfRetryable(ctx, s.retry, func() error {
		var err error
		count, err = s.exec.QueryScalar(ctx, query, args...)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table.Key(), err)
	}
	return count, nil
}

func (s *searchService) iterator(term string, tables []*models.TableMetadata) (*RowSearchIterator, error) {
	if term == "" {
		return nil, apperrors.ErrEmptySearchTerm
	}
	return &RowSearchIterator{
		exec:   s.exec,
		retry:  s.retry,
		term:   term,
		tables: tables,
	}, nil
}

// RowSearchIterator is a forward-only cursor over matching rows. At most one
// table cursor is open at a time. Close releases it.
type RowSearchIterator struct {
	exec   datasource.QueryExecutor
	retry  *retry.Config
	term   string
	tables []*models.TableMetadata

	next    int
	table   *models.TableMetadata
	rows    datasource.RowIterator
	current *models.RowSearchResult
	err     error
	closed  bool

	// Hooks run around each scanned table. An error terminates the iterator.
	onTableStart func(ctx context.Context, table *models.TableMetadata) error
	onTableEnd   func(ctx context.Context, table *models.TableMetadata) error
}

// Next advances to the next matching row, opening table cursors as needed.
// Tables without text columns are never queried.
func (it *RowSearchIterator) Next(ctx context.Context) bool {
	if it.closed || it.err != nil {
		return false
	}
	it.current = nil

	for {
		if it.rows == nil {
			if it.next >= len(it.tables) {
				return false
			}
			table := it.tables[it.next]
			it.next++
			if !table.HasStringTypeColumn() {
				continue
			}
			if err := it.open(ctx, table); err != nil {
				it.err = err
				return false
			}
		}

		for it.rows.Next() {
			if result := it.build(it.rows.Row()); result != nil {
				it.current = result
				return true
			}
		}

		if err := it.rows.Err(); err != nil {
			it.closeRows()
			it.err = fmt.Errorf("read %s: %w", it.table.Key(), err)
			return false
		}

		table := it.table
		it.closeRows()
		if it.onTableEnd != nil {
			if err := it.onTableEnd(ctx, table); err != nil {
				it.err = err
				return false
			}
		}
	}
}

// Result returns the row Next advanced to.
func (it *RowSearchIterator) Result() *models.RowSearchResult {
	return it.current
}

// Table returns the table currently being scanned, or nil between tables.
func (it *RowSearchIterator) Table() *models.TableMetadata {
	return it.table
}

// Err returns the error that terminated the iteration.
func (it *RowSearchIterator) Err() error {
	return it.err
}

// Close releases the open table cursor. It is safe to call more than once.
func (it *RowSearchIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.current = nil
	return it.closeRows()
}

func (it *RowSearchIterator) open(ctx context.Context, table *models.TableMetadata) error {
	charset := datasource.TableCharset{Charset: table.Charset, Collation: table.Collation}
	err := retry.DoIfRetryable(ctx, it.retry, func() error {
		return it.exec.PrepareTable(ctx, charset)
	})
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table.Key(), err)
	}

	if it.onTableStart != nil {
		if err := it.onTableStart(ctx, table); err != nil {
			return err
		}
	}

	query, args := selectQuery(it.exec, table, it.term)
	var rows datasource.RowIterator
	err = retry.DoIfRetryable(ctx, it.retry, func() error {
		var err error
		rows, err = it.exec.Query(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("search %s: %w", table.Key(), err)
	}

	it.table = table
	it.rows = rows
	return nil
}

func (it *RowSearchIterator) closeRows() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	it.table = nil
	return err
}

// build keeps only the text cells that really contain the term. A row the
// SQL filter admitted with no such cell yields nil.
func (it *RowSearchIterator) build(row datasource.Row) *models.RowSearchResult {
	var fields []models.FieldSearchResult
	for _, col := range it.table.StringColumns() {
		v := row[col.ColumnName]
		if v == nil || !containsFold(*v, it.term) {
			continue
		}
		fields = append(fields, models.FieldSearchResult{Column: col, Value: *v})
	}
	if len(fields) == 0 {
		return nil
	}

	pkColumns := it.table.PrimaryKeyColumns()
	keys := make([]models.KeyValue, 0, len(pkColumns))
	for _, pk := range pkColumns {
		keys = append(keys, models.KeyValue{Column: pk, Value: row[pk.ColumnName]})
	}
	return models.NewKeyedRowSearchResult(it.table, fields, keys)
}

// selectQuery fetches the primary key columns and every text column of rows
// where any text column matches term.
func selectQuery(exec datasource.QueryExecutor, table *models.TableMetadata, term string) (string, []any) {
	seen := map[string]struct{}{}
	var selected []string
	add := func(col *models.ColumnMetadata) {
		if _, ok := seen[col.ColumnName]; ok {
			return
		}
		seen[col.ColumnName] = struct{}{}
		selected = append(selected, exec.QuoteIdentifier(col.ColumnName))
	}
	for _, pk := range table.PrimaryKeyColumns() {
		add(pk)
	}
	columns := table.StringColumns()
	for _, col := range columns {
		add(col)
	}

	where, args := whereClause(exec, columns, term)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(selected, ", "),
		exec.QualifiedTable(table.DatabaseName, table.TableName),
		where)
	return query, args
}

// whereClause ORs a LIKE predicate per column, binding the pattern once per column.
func whereClause(exec datasource.QueryExecutor, columns []*models.ColumnMetadata, term string) (string, []any) {
	dialect := exec.Dialect()
	pattern := likePattern(term, dialect)
	op := likeOperator(dialect)

	predicates := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		predicates[i] = fmt.Sprintf("%s %s %s ESCAPE '%c'",
			exec.QuoteIdentifier(col.ColumnName), op, exec.Placeholder(i+1), likeEscape)
		args[i] = pattern
	}
	return strings.Join(predicates, " OR "), args
}
