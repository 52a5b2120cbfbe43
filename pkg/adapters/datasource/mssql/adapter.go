//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
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

// NewAdapter creates a SQL Server adapter with the given config.
// Uses connection manager for connection pooling when provided.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	connStr := cfg.ConnectionString()

	if connMgr == nil {
		db, err := sql.Open(cfg.DriverName(), connStr)
		if err != nil {
			return nil, fmt.Errorf("create connection: %s", logging.SanitizeError(err))
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connection test failed: %s", logging.SanitizeError(err))
		}
		return &Adapter{config: cfg, db: db, ownedDB: true, logger: logger}, nil
	}

	connector, err := connMgr.GetOrCreatePool(ctx, datasource.DialectMSSQL, connStr, datasource.SQLPoolFactory(cfg.DriverName(), datasource.DialectMSSQL))
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.SQLDBOf(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract mssql db: %w", err)
	}

	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

func (a *Adapter) Host() string {
	return a.config.Address()
}

// Close releases the adapter (but NOT the DB if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}
