package services

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/apperrors"
	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/sqldump"
)

// MetadataService builds the metadata model from a live catalog.
type MetadataService interface {
	// Server describes every user database on the host.
	Server(ctx context.Context) (*models.ServerMetadata, error)

	// Database describes the tables of one database.
	Database(ctx context.Context, name string) (*models.DatabaseMetadata, error)

	// Table describes one table. A missing table yields apperrors.ErrNotFound.
	Table(ctx context.Context, database, table string) (*models.TableMetadata, error)
}

type metadataService struct {
	catalog datasource.CatalogReader
}

// NewMetadataService creates a metadata service over catalog.
func NewMetadataService(catalog datasource.CatalogReader) MetadataService {
	return &metadataService{catalog: catalog}
}

func (s *metadataService) Server(ctx context.Context) (*models.ServerMetadata, error) {
	names, err := s.catalog.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	databases := make([]*models.DatabaseMetadata, 0, len(names))
	for _, name := range names {
		db, err := s.Database(ctx, name)
		if err != nil {
			return nil, err
		}
		databases = append(databases, db)
	}
	return models.NewServerMetadata(s.catalog.Host(), databases), nil
}

func (s *metadataService) Database(ctx context.Context, name string) (*models.DatabaseMetadata, error) {
	infos, err := s.catalog.ListTables(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", name, err)
	}

	tables := make([]*models.TableMetadata, 0, len(infos))
	for _, info := range infos {
		table, err := s.table(ctx, name, info)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return models.NewDatabaseMetadata(name, tables), nil
}

func (s *metadataService) Table(ctx context.Context, database, table string) (*models.TableMetadata, error) {
	infos, err := s.catalog.ListTables(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", database, err)
	}
	for _, info := range infos {
		if info.Name == table {
			return s.table(ctx, database, info)
		}
	}
	return nil, fmt.Errorf("table %q in database %q: %w", table, database, apperrors.ErrNotFound)
}

func (s *metadataService) table(ctx context.Context, database string, info datasource.TableInfo) (*models.TableMetadata, error) {
	infos, err := s.catalog.ListColumns(ctx, database, info.Name)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", database, info.Name, err)
	}

	columns := make([]*models.ColumnMetadata, len(infos))
	for i, c := range infos {
		columns[i] = models.NewColumnMetadata(database, info.Name, c.Name, c.DataType, c.MaxLength, c.IsPrimaryKey, c.IsNullable, c.IsIndexed)
	}

	return models.NewTableMetadata(
		database,
		info.Name,
		optionOrDefault(info.Engine),
		optionOrDefault(info.Collation),
		optionOrDefault(info.Charset),
		info.RowCount,
		columns,
	), nil
}

func optionOrDefault(v string) string {
	if v == "" {
		return models.DefaultTableOption
	}
	return v
}

// FromDump parses the CREATE TABLE statements of a dump file and binds the
// tables to database. An empty database leaves table names unqualified in
// generated statements, so the connection's default database applies.
func FromDump(path, database string) (*models.DatabaseMetadata, error) {
	parsed, err := sqldump.ReadAll(path)
	if err != nil {
		return nil, err
	}

	tables := make([]*models.TableMetadata, len(parsed))
	for i, t := range parsed {
		tables[i] = t.WithDatabaseName(database)
	}
	return models.NewDatabaseMetadata(database, tables), nil
}
