package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/logging"
)

// Adapter owns the *sql.DB shared by the catalog reader and query executor.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool // true if we created the DB rather than the connection manager
	logger  *zap.Logger
}

// NewAdapter opens a MySQL pool. If connMgr is nil, the adapter owns an
// unmanaged pool (tests, one-shot CLI runs) and closes it on Close.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := cfg.DSN()

	if connMgr == nil {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %s", logging.SanitizeError(err))
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to mysql %s: %s", cfg.Address(), logging.SanitizeError(err))
		}
		return &Adapter{config: cfg, db: db, ownedDB: true, logger: logger}, nil
	}

	connector, err := connMgr.GetOrCreatePool(ctx, datasource.DialectMySQL, dsn, datasource.SQLPoolFactory("mysql", datasource.DialectMySQL))
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.SQLDBOf(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract mysql db: %w", err)
	}

	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

// Host identifies the server as host:port.
func (a *Adapter) Host() string {
	return a.config.Address()
}

// DB returns the underlying pool.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Close releases the adapter (but NOT the pool if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}
