package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNoStrategy         = errors.New("no replacement strategy accepts subject")
	ErrUnsupportedDialect = errors.New("unsupported datasource type")
	ErrEmptySearchTerm    = errors.New("search term must not be empty")
)
