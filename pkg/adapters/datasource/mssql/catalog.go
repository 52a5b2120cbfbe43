//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
)

// CatalogReader reads schemas, tables and columns. Each schema of the
// connected database is reported as a database.
type CatalogReader struct {
	*Adapter
}

// NewCatalogReader creates a SQL Server catalog reader.
func NewCatalogReader(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*CatalogReader, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, logger)
	if err != nil {
		return nil, err
	}
	return &CatalogReader{Adapter: adapter}, nil
}

// ListDatabases returns the user schemas of the connected database.
func (c *CatalogReader) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA ORDER BY SCHEMA_NAME`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		if isSystemSchema(name) {
			continue
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}

	c.logger.Debug("listed schemas", zap.Int("count", len(schemas)))
	return schemas, nil
}

// ListTables returns the user tables of a schema with partition row counts.
func (c *CatalogReader) ListTables(ctx context.Context, schema string) ([]datasource.TableInfo, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    t.name AS table_name,
	    COALESCE(SUM(p.rows), -1) AS row_count,
	    COALESCE(CAST(DATABASEPROPERTYEX(DB_NAME(), 'Collation') AS NVARCHAR(128)), '') AS collation_name
	FROM sys.tables t
	LEFT JOIN sys.partitions p ON t.object_id = p.object_id AND p.index_id IN (0, 1)
	WHERE t.is_ms_shipped = 0
	  AND SCHEMA_NAME(t.schema_id) = @p1
	GROUP BY t.name
	ORDER BY t.name
	`

	rows, err := c.db.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", schema, err)
	}
	defer rows.Close()

	var tables []datasource.TableInfo
	for rows.Next() {
		var t datasource.TableInfo
		if err := rows.Scan(&t.Name, &t.RowCount, &t.Collation); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// ListColumns returns the columns of a table in ordinal order.
// CHARACTER_MAXIMUM_LENGTH is -1 for (n)varchar(max), reported as unbounded.
func (c *CatalogReader) ListColumns(ctx context.Context, schema, table string) ([]datasource.ColumnInfo, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    c.COLUMN_NAME,
	    c.DATA_TYPE,
	    c.CHARACTER_MAXIMUM_LENGTH,
	    CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS is_nullable,
	    CASE WHEN EXISTS (
	        SELECT 1
	        FROM sys.indexes i
	        JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	        WHERE i.is_primary_key = 1
	          AND i.object_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
	          AND COL_NAME(ic.object_id, ic.column_id) = c.COLUMN_NAME
	    ) THEN 1 ELSE 0 END AS is_primary_key,
	    CASE WHEN EXISTS (
	        SELECT 1
	        FROM sys.index_columns ic
	        WHERE ic.object_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
	          AND ic.key_ordinal = 1
	          AND COL_NAME(ic.object_id, ic.column_id) = c.COLUMN_NAME
	    ) THEN 1 ELSE 0 END AS is_indexed
	FROM INFORMATION_SCHEMA.COLUMNS c
	WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
	ORDER BY c.ORDINAL_POSITION
	`

	rows, err := c.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", buildFullyQualifiedName(schema, table), err)
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
		col.DataType = normalizeType(col.DataType)
		if maxLength.Valid && maxLength.Int64 > 0 {
			n := int(maxLength.Int64)
			col.MaxLength = &n
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

var _ datasource.CatalogReader = (*CatalogReader)(nil)
