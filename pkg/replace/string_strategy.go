package replace

import (
	"strings"

	"github.com/ekaya-inc/grepdb/pkg/models"
)

// StringStrategy performs a literal, case-sensitive substitution.
type StringStrategy struct{}

// NewStringStrategy returns the plain string strategy.
func NewStringStrategy() *StringStrategy {
	return &StringStrategy{}
}

func (s *StringStrategy) Name() string {
	return "string"
}

// CanReplace reports whether search occurs in subject at least once.
func (s *StringStrategy) CanReplace(search, subject string) bool {
	return search != "" && strings.Count(subject, search) > 0
}

// Replace substitutes every non-overlapping occurrence of search.
func (s *StringStrategy) Replace(column *models.ColumnMetadata, search, replace, subject string) models.FieldReplaceResult {
	result := models.FieldReplaceResult{
		Column:   column,
		OldValue: subject,
		NewValue: subject,
	}

	if search != "" {
		result.ReplacedCount = strings.Count(subject, search)
	}
	if result.ReplacedCount == 0 {
		result.Errors = []string{notFoundError(search, subject)}
		return result
	}

	result.NewValue = strings.ReplaceAll(subject, search, replace)
	return result
}

var _ Strategy = (*StringStrategy)(nil)
