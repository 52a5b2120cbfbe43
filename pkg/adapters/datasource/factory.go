package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/apperrors"
)

// AdapterFactory creates adapters from the registry.
type AdapterFactory interface {
	// NewCatalogReader creates a catalog reader for the given datasource type.
	NewCatalogReader(ctx context.Context, dsType string, config map[string]any) (CatalogReader, error)

	// NewQueryExecutor creates a query executor for the given datasource type.
	NewQueryExecutor(ctx context.Context, dsType string, config map[string]any) (QueryExecutor, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	connMgr *ConnectionManager
	logger  *zap.Logger
}

// NewAdapterFactory returns a factory that uses the global registry.
// A nil connMgr makes every adapter own its pool.
func NewAdapterFactory(connMgr *ConnectionManager, logger *zap.Logger) AdapterFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{
		connMgr: connMgr,
		logger:  logger,
	}
}

func (f *registryFactory) NewCatalogReader(ctx context.Context, dsType string, config map[string]any) (CatalogReader, error) {
	factory := GetCatalogFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("datasource type %s (not compiled in): %w", dsType, apperrors.ErrUnsupportedDialect)
	}
	return factory(ctx, config, f.connMgr, f.logger.Named(dsType))
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, dsType string, config map[string]any) (QueryExecutor, error) {
	factory := GetExecutorFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("datasource type %s (not compiled in): %w", dsType, apperrors.ErrUnsupportedDialect)
	}
	return factory(ctx, config, f.connMgr, f.logger.Named(dsType))
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

var _ AdapterFactory = (*registryFactory)(nil)
