package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConnector is a connection pool the ConnectionManager can cache, ping and expire.
type PoolConnector interface {
	Ping(ctx context.Context) error
	Close() error
	// Dialect names the database behind the pool, for logs.
	Dialect() string
}

// PoolFactory opens a new pool for a connection string.
type PoolFactory func(ctx context.Context, connString string, cfg ConnectionManagerConfig) (PoolConnector, error)

type pgxPool struct {
	*pgxpool.Pool
}

func (p pgxPool) Close() error {
	p.Pool.Close()
	return nil
}

func (pgxPool) Dialect() string { return DialectPostgres }

type sqlPool struct {
	*sql.DB
	dialect string
}

func (p sqlPool) Ping(ctx context.Context) error { return p.PingContext(ctx) }

func (p sqlPool) Dialect() string { return p.dialect }

// OpenPgxPool is the PoolFactory for PostgreSQL. Idle connections are dropped
// after the manager's TTL.
func OpenPgxPool(ctx context.Context, connString string, cfg ConnectionManagerConfig) (PoolConnector, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = cfg.PoolMaxConns
	poolConfig.MinConns = cfg.PoolMinConns
	poolConfig.MaxConnIdleTime = time.Duration(cfg.TTLMinutes) * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	return pgxPool{pool}, nil
}

// SQLPoolFactory returns a PoolFactory for a database/sql driver registered
// under driverName. The pool is pinged before it is handed out.
func SQLPoolFactory(driverName, dialect string) PoolFactory {
	return func(ctx context.Context, connString string, cfg ConnectionManagerConfig) (PoolConnector, error) {
		db, err := sql.Open(driverName, connString)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(int(cfg.PoolMaxConns))
		db.SetMaxIdleConns(int(cfg.PoolMinConns))
		db.SetConnMaxIdleTime(time.Duration(cfg.TTLMinutes) * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlPool{DB: db, dialect: dialect}, nil
	}
}

// PgxPoolOf returns the pgx pool behind a connector opened by OpenPgxPool.
func PgxPoolOf(c PoolConnector) (*pgxpool.Pool, error) {
	p, ok := c.(pgxPool)
	if !ok {
		return nil, fmt.Errorf("%s pool is not a pgx pool", c.Dialect())
	}
	return p.Pool, nil
}

// SQLDBOf returns the *sql.DB behind a connector opened by SQLPoolFactory.
func SQLDBOf(c PoolConnector) (*sql.DB, error) {
	p, ok := c.(sqlPool)
	if !ok {
		return nil, fmt.Errorf("%s pool is not a database/sql pool", c.Dialect())
	}
	return p.DB, nil
}
