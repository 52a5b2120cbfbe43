package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type" yaml:"type"`                 // "mysql", "postgres", "mssql"
	DisplayName string `json:"display_name" yaml:"display_name"` // "MySQL / MariaDB"
	Description string `json:"description" yaml:"description"`
}

// CatalogFactory opens a catalog reader from a generic config map.
type CatalogFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, logger *zap.Logger) (CatalogReader, error)

// ExecutorFactory opens a query executor from a generic config map.
type ExecutorFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, logger *zap.Logger) (QueryExecutor, error)

// AdapterRegistration contains info + factories for creating adapters.
type AdapterRegistration struct {
	Info            AdapterInfo
	CatalogFactory  CatalogFactory
	ExecutorFactory ExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetCatalogFactory returns nil if the type is not registered.
func GetCatalogFactory(dsType string) CatalogFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.CatalogFactory
	}
	return nil
}

// GetExecutorFactory returns nil if the type is not registered.
func GetExecutorFactory(dsType string) ExecutorFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.ExecutorFactory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
