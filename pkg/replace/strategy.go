// Package replace routes a single field value to the replacement strategy that
// can safely rewrite it.
package replace

import (
	"fmt"

	"github.com/ekaya-inc/grepdb/pkg/apperrors"
	"github.com/ekaya-inc/grepdb/pkg/models"
)

// Strategy decides whether it can rewrite a subject and performs the rewrite.
type Strategy interface {
	// Name identifies the strategy in diagnostics.
	Name() string

	// CanReplace reports whether this strategy should handle subject.
	CanReplace(search, subject string) bool

	// Replace substitutes search with replace in subject.
	// Failures are reported in the result's Errors, never returned.
	Replace(column *models.ColumnMetadata, search, replace, subject string) models.FieldReplaceResult
}

// Chain tries strategies in a fixed order; the first that accepts a subject wins.
// When none accepts, the last strategy handles the subject so the caller still
// receives a result carrying a "not found" error.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain over the given strategies, tried in order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// DefaultChain tries serialized values before plain strings, so serialized
// length prefixes are always rebuilt rather than corrupted by a raw substitution.
func DefaultChain() *Chain {
	return NewChain(NewSerializedStrategy(), NewStringStrategy())
}

// Strategies returns the strategies in priority order.
func (c *Chain) Strategies() []Strategy {
	out := make([]Strategy, len(c.strategies))
	copy(out, c.strategies)
	return out
}

// Select returns the first strategy that accepts subject, falling back to the
// last one. It fails only for an empty chain.
func (c *Chain) Select(search, subject string) (Strategy, error) {
	if len(c.strategies) == 0 {
		return nil, fmt.Errorf("search %q: %w", search, apperrors.ErrNoStrategy)
	}
	for _, s := range c.strategies {
		if s.CanReplace(search, subject) {
			return s, nil
		}
	}
	return c.strategies[len(c.strategies)-1], nil
}

// Replace runs subject through the first accepting strategy.
func (c *Chain) Replace(column *models.ColumnMetadata, search, replace, subject string) (models.FieldReplaceResult, error) {
	s, err := c.Select(search, subject)
	if err != nil {
		name := ""
		if column != nil {
			name = column.Key()
		}
		return models.FieldReplaceResult{}, fmt.Errorf("column %s: %w", name, err)
	}
	return s.Replace(column, search, replace, subject), nil
}

func notFoundError(search, subject string) string {
	return `Search term "` + search + `" not found in subject "` + subject + `"`
}
