// Package sql provides identifier parsing and term checks for user input.
package sql

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxIdentifierLength is the longest identifier MySQL accepts.
const MaxIdentifierLength = 64

var (
	// ErrInvalidIdentifier indicates a malformed table or database name.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// TableRef is a table named on the command line, optionally qualified by database.
type TableRef struct {
	Database string // empty when unqualified
	Table    string
}

func (r TableRef) String() string {
	if r.Database == "" {
		return r.Table
	}
	return r.Database + "." + r.Table
}

// ParseTableRef parses "table", "db.table" or a quoted form such as
// "`my db`.`posts`" or `"public"."posts"`. A dot inside quotes is part of the name.
func ParseTableRef(ref string) (TableRef, error) {
	parts, err := splitQualified(strings.TrimSpace(ref))
	if err != nil {
		return TableRef{}, err
	}

	switch len(parts) {
	case 1:
		return TableRef{Table: parts[0]}, nil
	case 2:
		return TableRef{Database: parts[0], Table: parts[1]}, nil
	}
	return TableRef{}, fmt.Errorf("%w: %q has more than two parts", ErrInvalidIdentifier, ref)
}

// ValidateIdentifier rejects names no supported dialect can store.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidIdentifier, name)
	}
	if utf8.RuneCountInString(name) > MaxIdentifierLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidIdentifier, name, MaxIdentifierLength)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidIdentifier, name)
	}
	if strings.HasSuffix(name, " ") {
		return fmt.Errorf("%w: %q ends with a space", ErrInvalidIdentifier, name)
	}
	return nil
}

// splitQualified splits on dots outside quotes and unquotes each part.
// Backticks, double quotes and brackets are accepted; a doubled closing
// quote inside a quoted part stands for itself.
func splitQualified(ref string) ([]string, error) {
	var (
		parts   []string
		current strings.Builder
		closer  rune // 0 when outside quotes
		quoted  bool
	)

	runes := []rune(ref)
	flush := func() error {
		part := current.String()
		if !quoted {
			part = strings.TrimSpace(part)
		}
		if err := ValidateIdentifier(part); err != nil {
			return err
		}
		parts = append(parts, part)
		current.Reset()
		quoted = false
		return nil
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if closer != 0 {
			if r == closer {
				if i+1 < len(runes) && runes[i+1] == closer {
					current.WriteRune(r)
					i++
					continue
				}
				closer = 0
				continue
			}
			current.WriteRune(r)
			continue
		}

		switch r {
		case '`', '"':
			closer, quoted = r, true
		case '[':
			closer, quoted = ']', true
		case '.':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			current.WriteRune(r)
		}
	}

	if closer != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrInvalidIdentifier, ref)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parts, nil
}
