package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
)

// systemDatabases are never searched.
var systemDatabases = map[string]struct{}{
	"information_schema": {},
	"mysql":              {},
	"performance_schema": {},
	"sys":                {},
}

// CatalogReader reads databases, tables and columns from information_schema.
type CatalogReader struct {
	*Adapter
}

// NewCatalogReader creates a MySQL catalog reader.
func NewCatalogReader(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*CatalogReader, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, logger)
	if err != nil {
		return nil, err
	}
	return &CatalogReader{Adapter: adapter}, nil
}

// ListDatabases returns every database except the MySQL system schemas.
func (c *CatalogReader) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		if _, system := systemDatabases[strings.ToLower(name)]; system {
			continue
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate databases: %w", err)
	}

	c.logger.Debug("listed databases", zap.Int("count", len(databases)))
	return databases, nil
}

// ListTables returns the base tables of database with their engine,
// collation and character set. TABLE_ROWS is an estimate for InnoDB.
func (c *CatalogReader) ListTables(ctx context.Context, database string) ([]datasource.TableInfo, error) {
	const query = `
		SELECT
			t.TABLE_NAME,
			COALESCE(t.ENGINE, ''),
			COALESCE(t.TABLE_COLLATION, ''),
			COALESCE(ccsa.CHARACTER_SET_NAME, ''),
			t.TABLE_ROWS
		FROM information_schema.TABLES t
		LEFT JOIN information_schema.COLLATION_CHARACTER_SET_APPLICABILITY ccsa
			ON ccsa.COLLATION_NAME = t.TABLE_COLLATION
		WHERE t.TABLE_SCHEMA = ?
		  AND t.TABLE_TYPE = 'BASE TABLE'
		ORDER BY t.TABLE_NAME`

	rows, err := c.db.QueryContext(ctx, query, database)
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", database, err)
	}
	defer rows.Close()

	var tables []datasource.TableInfo
	for rows.Next() {
		var (
			t        datasource.TableInfo
			rowCount sql.NullInt64
		)
		if err := rows.Scan(&t.Name, &t.Engine, &t.Collation, &t.Charset, &rowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t.RowCount = -1
		if rowCount.Valid {
			t.RowCount = rowCount.Int64
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// ListColumns returns the columns of a table in ordinal order. A column is
// indexed when it is the first column of any index.
func (c *CatalogReader) ListColumns(ctx context.Context, database, table string) ([]datasource.ColumnInfo, error) {
	const query = `
		SELECT
			c.COLUMN_NAME,
			c.COLUMN_TYPE,
			c.CHARACTER_MAXIMUM_LENGTH,
			c.IS_NULLABLE = 'YES',
			c.COLUMN_KEY = 'PRI',
			EXISTS (
				SELECT 1 FROM information_schema.STATISTICS s
				WHERE s.TABLE_SCHEMA = c.TABLE_SCHEMA
				  AND s.TABLE_NAME = c.TABLE_NAME
				  AND s.COLUMN_NAME = c.COLUMN_NAME
				  AND s.SEQ_IN_INDEX = 1
			)
		FROM information_schema.COLUMNS c
		WHERE c.TABLE_SCHEMA = ? AND c.TABLE_NAME = ?
		ORDER BY c.ORDINAL_POSITION`

	rows, err := c.db.QueryContext(ctx, query, database, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", database, table, err)
	}
	defer rows.Close()

	var columns []datasource.ColumnInfo
	for rows.Next() {
		var (
			col       datasource.ColumnInfo
			maxLength sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &col.DataType, &maxLength, &col.IsNullable, &col.IsPrimaryKey, &col.IsIndexed); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.MaxLength = maxLengthFromCatalog(maxLength)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// maxLengthFromCatalog converts CHARACTER_MAXIMUM_LENGTH. LONGTEXT reports
// 4294967295, which does not fit an int on 32-bit platforms; treat anything
// beyond the int range as unbounded.
func maxLengthFromCatalog(v sql.NullInt64) *int {
	if !v.Valid || v.Int64 < 0 || v.Int64 > int64(^uint(0)>>1) {
		return nil
	}
	n := int(v.Int64)
	return &n
}

var _ datasource.CatalogReader = (*CatalogReader)(nil)
