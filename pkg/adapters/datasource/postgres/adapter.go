//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/logging"
)

// Adapter owns the pool shared by the catalog reader and query executor.
type Adapter struct {
	config    *Config
	pool      *pgxpool.Pool
	ownedPool bool // true if we created the pool rather than the connection manager
	logger    *zap.Logger
}

// NewAdapter creates a PostgreSQL adapter using the connection manager.
// If connMgr is nil, creates an unmanaged pool (for tests or one-shot runs).
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connStr := cfg.ConnectionString()

	if connMgr == nil {
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %s", logging.SanitizeError(err))
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to postgres %s: %s", cfg.Address(), logging.SanitizeError(err))
		}
		return &Adapter{config: cfg, pool: pool, ownedPool: true, logger: logger}, nil
	}

	connector, err := connMgr.GetOrCreatePool(ctx, datasource.DialectPostgres, connStr, datasource.OpenPgxPool)
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	pool, err := datasource.PgxPoolOf(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract postgres pool: %w", err)
	}

	return &Adapter{config: cfg, pool: pool, logger: logger}, nil
}

func (a *Adapter) Host() string {
	return a.config.Address()
}

// Close releases the adapter (but NOT the pool if managed).
func (a *Adapter) Close() error {
	if a.ownedPool && a.pool != nil {
		a.pool.Close()
	}
	return nil
}
