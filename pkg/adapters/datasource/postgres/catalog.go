//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
)

// CatalogReader reads schemas, tables and columns. Each schema of the
// connected database is reported as a database.
type CatalogReader struct {
	*Adapter
}

// NewCatalogReader creates a PostgreSQL catalog reader.
func NewCatalogReader(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*CatalogReader, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, logger)
	if err != nil {
		return nil, err
	}
	return &CatalogReader{Adapter: adapter}, nil
}

// ListDatabases returns the user schemas of the connected database.
func (c *CatalogReader) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `
		SELECT nspname
		FROM pg_namespace
		WHERE nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND nspname NOT LIKE 'pg_temp_%'
		  AND nspname NOT LIKE 'pg_toast_temp_%'
		ORDER BY nspname`

	rows, err := c.pool.Query(ctx, query)
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
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}

	c.logger.Debug("listed schemas", zap.Int("count", len(schemas)))
	return schemas, nil
}

// ListTables returns the base tables of a schema. Row counts come from
// pg_class.reltuples, which is -1 for never-analyzed tables.
func (c *CatalogReader) ListTables(ctx context.Context, schema string) ([]datasource.TableInfo, error) {
	const query = `
		SELECT
			t.table_name::text,
			COALESCE(cl.reltuples::bigint, -1) AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class cl ON cl.relname = t.table_name AND cl.relnamespace = n.oid
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema = $1
		ORDER BY t.table_name`

	rows, err := c.pool.Query(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", schema, err)
	}
	defer rows.Close()

	var tables []datasource.TableInfo
	for rows.Next() {
		var t datasource.TableInfo
		if err := rows.Scan(&t.Name, &t.RowCount); err != nil {
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
// Uses pg_index for primary key detection, which identifies primary keys even
// when created as unique indexes.
func (c *CatalogReader) ListColumns(ctx context.Context, schema, table string) ([]datasource.ColumnInfo, error) {
	const query = `
		SELECT
			c.column_name::text,
			c.data_type::text,
			c.character_maximum_length::int,
			c.is_nullable = 'YES' AS is_nullable,
			EXISTS (
				SELECT 1
				FROM pg_index ix
				JOIN pg_class t ON t.oid = ix.indrelid
				JOIN pg_namespace n ON n.oid = t.relnamespace
				JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
				WHERE ix.indisprimary
				  AND n.nspname = c.table_schema
				  AND t.relname = c.table_name
				  AND a.attname = c.column_name
			) AS is_primary_key,
			EXISTS (
				SELECT 1
				FROM pg_index ix
				JOIN pg_class t ON t.oid = ix.indrelid
				JOIN pg_namespace n ON n.oid = t.relnamespace
				JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ix.indkey[0]
				WHERE n.nspname = c.table_schema
				  AND t.relname = c.table_name
				  AND a.attname = c.column_name
			) AS is_indexed
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	rows, err := c.pool.Query(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var columns []datasource.ColumnInfo
	for rows.Next() {
		var (
			col       datasource.ColumnInfo
			maxLength *int32
		)
		if err := rows.Scan(&col.Name, &col.DataType, &maxLength, &col.IsNullable, &col.IsPrimaryKey, &col.IsIndexed); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.DataType = normalizeType(col.DataType)
		if maxLength != nil {
			n := int(*maxLength)
			col.MaxLength = &n
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// normalizeType maps PostgreSQL character types onto MySQL spelling so the
// string-type predicate applies unchanged. Byte lengths are unknown for
// character(n) in multibyte encodings; the character limit is reported.
func normalizeType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "character varying":
		return "varchar"
	case "character", "bpchar":
		return "char"
	case "text", "citext":
		return "text"
	}
	return dataType
}

var _ datasource.CatalogReader = (*CatalogReader)(nil)
