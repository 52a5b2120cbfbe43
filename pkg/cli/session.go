package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/retry"
	"github.com/ekaya-inc/grepdb/pkg/services"
	"github.com/ekaya-inc/grepdb/pkg/sql"
)

// session holds the open adapters of one command run.
type session struct {
	connMgr  *datasource.ConnectionManager
	catalog  datasource.CatalogReader
	exec     datasource.QueryExecutor
	metadata services.MetadataService
	logger   *zap.Logger
}

// connect opens a catalog reader and a query executor sharing one pool.
func (a *app) connect(ctx context.Context) (*session, error) {
	ds := a.cfg.Datasource
	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:   a.cfg.Connection.TTLMinutes,
		MaxPools:     2,
		PoolMaxConns: a.cfg.Connection.MaxOpenConns,
	}, a.logger.Named("connections"))

	factory := datasource.NewAdapterFactory(connMgr, a.logger)
	adapterConfig := ds.AdapterConfig()

	s := &session{connMgr: connMgr, logger: a.logger}
	catalog, err := factory.NewCatalogReader(ctx, ds.Type, adapterConfig)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect to %s: %w", ds.String(), err)
	}
	s.catalog = catalog

	exec, err := factory.NewQueryExecutor(ctx, ds.Type, adapterConfig)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect to %s: %w", ds.String(), err)
	}
	s.exec = exec
	s.metadata = services.NewMetadataService(catalog)

	a.logger.Info("connected",
		zap.String("datasource", ds.String()),
		zap.String("host", catalog.Host()),
	)
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	if s.exec != nil {
		errs = append(errs, s.exec.Close())
	}
	if s.catalog != nil {
		errs = append(errs, s.catalog.Close())
	}
	errs = append(errs, s.connMgr.Close())
	return errors.Join(errs...)
}

// retryConfig turns the configured attempt count into a retry policy.
func (a *app) retryConfig() *retry.Config {
	if a.cfg.Connection.RetryAttempts == 0 {
		return retry.NoRetry()
	}
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = a.cfg.Connection.RetryAttempts
	return cfg
}

// scopeFlags select what a search or replace covers.
type scopeFlags struct {
	table        string
	schemaDump   string
	allDatabases bool
}

// scope is either a list of databases or a single table.
type scope struct {
	databases []*models.DatabaseMetadata
	table     *models.TableMetadata
}

// resolveScope builds metadata for the selected tables. A dump file supplies
// the schema offline; everything else comes from the live catalog.
func (a *app) resolveScope(ctx context.Context, s *session, f scopeFlags) (*scope, error) {
	database := a.cfg.Datasource.Database

	var (
		ref sql.TableRef
		err error
	)
	if f.table != "" {
		ref, err = sql.ParseTableRef(f.table)
		if err != nil {
			return nil, err
		}
		if ref.Database != "" {
			database = ref.Database
		}
	}

	if f.schemaDump != "" {
		if database == "" {
			return nil, fmt.Errorf("--schema-dump needs the live database: pass --database or qualify --table")
		}
		db, err := services.FromDump(f.schemaDump, database)
		if err != nil {
			return nil, err
		}
		a.logger.Info("schema loaded from dump",
			zap.String("path", f.schemaDump),
			zap.Int("tables", len(db.Tables())),
		)
		if f.table != "" {
			table, err := db.Table(ref.Table)
			if err != nil {
				return nil, err
			}
			return &scope{table: table}, nil
		}
		return &scope{databases: []*models.DatabaseMetadata{db}}, nil
	}

	if f.allDatabases {
		srv, err := s.metadata.Server(ctx)
		if err != nil {
			return nil, err
		}
		return &scope{databases: srv.Databases()}, nil
	}

	if database == "" {
		return nil, fmt.Errorf("no database selected: pass --database, qualify --table or use --all-databases")
	}

	if f.table != "" {
		table, err := s.metadata.Table(ctx, database, ref.Table)
		if err != nil {
			return nil, err
		}
		return &scope{table: table}, nil
	}

	db, err := s.metadata.Database(ctx, database)
	if err != nil {
		return nil, err
	}
	return &scope{databases: []*models.DatabaseMetadata{db}}, nil
}

// warnSuspiciousTerms logs terms libinjection flags. They are still bound as
// parameters, so the run continues.
func (a *app) warnSuspiciousTerms(names, values []string) {
	for _, r := range sql.CheckTerms(names, values) {
		a.logger.Warn("term looks like SQL; it is matched literally",
			zap.String("term", r.Name),
			zap.String("fingerprint", r.Fingerprint),
		)
	}
}
