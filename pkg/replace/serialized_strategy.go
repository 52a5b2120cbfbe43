package replace

import (
	"strings"

	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/serialized"
)

// DeserializeFailedError is recorded when a subject does not decode.
const DeserializeFailedError = "Failed to deserialize field"

// SerializedStrategy rewrites string leaves inside serialized values and
// rebuilds every length prefix.
type SerializedStrategy struct{}

// NewSerializedStrategy returns the serialized-value strategy.
func NewSerializedStrategy() *SerializedStrategy {
	return &SerializedStrategy{}
}

func (s *SerializedStrategy) Name() string {
	return "serialized"
}

// CanReplace reports whether subject decodes and its raw text contains search.
// A term found only in keys or class names is still claimed so the raw bytes
// never reach a plain substitution; Replace then reports it as not found.
// Decode failures count as "cannot replace".
func (s *SerializedStrategy) CanReplace(search, subject string) bool {
	return strings.Contains(subject, search) && serialized.IsSerialized([]byte(subject))
}

// Replace delegates to the serialized editor. A subject that fails to decode
// comes back unchanged with a zero count and an error.
func (s *SerializedStrategy) Replace(column *models.ColumnMetadata, search, replace, subject string) models.FieldReplaceResult {
	result := models.FieldReplaceResult{
		Column:   column,
		OldValue: subject,
		NewValue: subject,
	}

	out, count, err := serialized.Replace([]byte(subject), search, replace)
	if err != nil {
		result.Errors = []string{DeserializeFailedError}
		return result
	}

	result.ReplacedCount = count
	if count == 0 {
		result.Errors = []string{notFoundError(search, subject)}
		return result
	}

	result.NewValue = string(out)
	return result
}

var _ Strategy = (*SerializedStrategy)(nil)
