package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/logging"
	"github.com/ekaya-inc/grepdb/pkg/retry"
)

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
	DefaultMaxPools             = 10
	DefaultPoolMaxConns         = 10
	DefaultPoolMinConns         = 1
)

// ConnectionManagerConfig holds configuration for the connection manager
type ConnectionManagerConfig struct {
	TTLMinutes   int
	MaxPools     int
	PoolMaxConns int32
	PoolMinConns int32
}

// ConnectionManager caches one connection pool per (dialect, connection string)
// with TTL-based expiry and automatic cleanup.
type ConnectionManager struct {
	mu           sync.RWMutex
	connections  map[string]*ManagedConnection // key: "{dialect}:{connection id}"
	cfg          ConnectionManagerConfig
	ttl          time.Duration
	retryConfig  *retry.Config
	stopped      bool
	stopChan     chan struct{}
	logger       *zap.Logger
	cleanupEvery time.Duration
}

// ManagedConnection represents a pooled connection
type ManagedConnection struct {
	pool     PoolConnector
	dialect  string
	lastUsed time.Time
	mu       sync.Mutex
}

// NewConnectionManager creates a connection manager with the given configuration.
// Starts a background cleanup goroutine that runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.MaxPools <= 0 {
		cfg.MaxPools = DefaultMaxPools
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := &ConnectionManager{
		connections:  make(map[string]*ManagedConnection),
		cfg:          cfg,
		ttl:          time.Duration(cfg.TTLMinutes) * time.Minute,
		retryConfig:  retry.DefaultConfig(),
		stopChan:     make(chan struct{}),
		logger:       logger,
		cleanupEvery: DefaultCleanupInterval,
	}

	go manager.cleanupExpiredConnections()
	return manager
}

// Config returns the effective configuration.
func (m *ConnectionManager) Config() ConnectionManagerConfig {
	return m.cfg
}

// connectionKey identifies a pool without embedding credentials.
func connectionKey(dialect, connString string) string {
	return fmt.Sprintf("%s:%s", dialect, uuid.NewSHA1(uuid.NameSpaceURL, []byte(connString)))
}

// GetOrCreatePool returns the cached pool for (dialect, connString), creating
// it with create when missing or unhealthy.
func (m *ConnectionManager) GetOrCreatePool(
	ctx context.Context,
	dialect string,
	connString string,
	create PoolFactory,
) (PoolConnector, error) {
	key := connectionKey(dialect, connString)

	m.mu.RLock()
	managed, exists := m.connections[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := retry.Do(healthCtx, m.retryConfig, func() error {
			return managed.pool.Ping(healthCtx)
		})

		if err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("key", key),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.removeConnection(key)
			return m.createNewPool(ctx, key, dialect, connString, create)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.pool, nil
	}

	return m.createNewPool(ctx, key, dialect, connString, create)
}

// createNewPool creates a new connection pool with retry logic.
// Caller must NOT hold any locks (this method acquires write lock).
func (m *ConnectionManager) createNewPool(
	ctx context.Context,
	key string,
	dialect string,
	connString string,
	create PoolFactory,
) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager is closed")
	}

	// Another caller may have created it while we waited for the lock
	if managed, exists := m.connections[key]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.pool, nil
	}

	if len(m.connections) >= m.cfg.MaxPools {
		m.logger.Warn("reached max pools limit",
			zap.Int("current", len(m.connections)),
			zap.Int("max", m.cfg.MaxPools),
		)
		return nil, fmt.Errorf("maximum pools limit reached (%d)", m.cfg.MaxPools)
	}

	pool, err := retry.DoWithResult(ctx, m.retryConfig, func() (PoolConnector, error) {
		return create(ctx, connString, m.cfg)
	})
	if err != nil {
		m.logger.Error("failed to create pool after retries",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("create %s pool: %s", dialect, logging.SanitizeError(err))
	}

	m.connections[key] = &ManagedConnection{
		pool:     pool,
		dialect:  dialect,
		lastUsed: time.Now(),
	}

	m.logger.Info("created new connection pool",
		zap.String("key", key),
		zap.String("dialect", dialect),
		zap.String("target", logging.SanitizeConnectionString(connString)),
		zap.Int("totalPools", len(m.connections)),
	)

	return pool, nil
}

// removeConnection removes a connection from the pool and closes it.
// Caller must NOT hold m.mu lock (this method acquires write lock).
func (m *ConnectionManager) removeConnection(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.connections[key]; exists && managed != nil {
		if managed.pool != nil {
			_ = managed.pool.Close()
		}
		delete(m.connections, key)
		m.logger.Debug("removed connection", zap.String("key", key))
	}
}

// cleanupExpiredConnections runs periodically to remove expired connections.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(m.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes connections that haven't been used within TTL.
// Lock ordering: manager lock, then connection lock.
func (m *ConnectionManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	expiredKeys := []string{}

	for key, managed := range m.connections {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idleTime := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idleTime > m.ttl {
			expiredKeys = append(expiredKeys, key)
			m.logger.Debug("marking connection for cleanup",
				zap.String("key", key),
				zap.Duration("idleTime", idleTime),
				zap.Duration("ttl", m.ttl),
			)
		}
	}

	for _, key := range expiredKeys {
		if managed := m.connections[key]; managed != nil && managed.pool != nil {
			_ = managed.pool.Close()
		}
		delete(m.connections, key)
	}

	if len(expiredKeys) > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", len(expiredKeys)),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all connections in the manager and stops the cleanup goroutine.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for _, managed := range m.connections {
		if managed != nil && managed.pool != nil {
			_ = managed.pool.Close()
		}
	}

	m.connections = make(map[string]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// GetStats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections:     len(m.connections),
		MaxPools:             m.cfg.MaxPools,
		TTLMinutes:           int(m.ttl.Minutes()),
		ConnectionsByDialect: make(map[string]int),
	}

	for _, managed := range m.connections {
		if managed == nil {
			continue
		}
		stats.ConnectionsByDialect[managed.dialect]++

		managed.mu.Lock()
		idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idleSeconds > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idleSeconds
		}
	}

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections     int            `json:"total_connections"`
	MaxPools             int            `json:"max_pools"`
	TTLMinutes           int            `json:"ttl_minutes"`
	ConnectionsByDialect map[string]int `json:"connections_by_dialect"`
	OldestIdleSeconds    int            `json:"oldest_idle_seconds"`
}
