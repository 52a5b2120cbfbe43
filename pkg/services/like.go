package services

import (
	"strings"
	"unicode/utf8"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
)

// likeEscape is the escape character declared on every LIKE predicate.
const likeEscape = '!'

// escapeLike makes term match literally inside a LIKE pattern for dialect.
// SQL Server also treats '[' as the start of a character class.
func escapeLike(term, dialect string) string {
	var b strings.Builder
	b.Grow(len(term) + 4)
	for _, r := range term {
		switch {
		case r == likeEscape, r == '%', r == '_':
			b.WriteRune(likeEscape)
		case r == '[' && dialect == datasource.DialectMSSQL:
			b.WriteRune(likeEscape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// likePattern wraps the escaped term for a substring match.
func likePattern(term, dialect string) string {
	return "%" + escapeLike(term, dialect) + "%"
}

// likeOperator returns the case-insensitive LIKE operator of dialect.
// MySQL and SQL Server compare through the column collation.
func likeOperator(dialect string) string {
	if dialect == datasource.DialectPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

// containsFold reports whether s contains substr under Unicode case folding.
func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	n := utf8.RuneCountInString(substr)
	for i := 0; i < len(s); {
		end, count := i, 0
		for end < len(s) && count < n {
			_, size := utf8.DecodeRuneInString(s[end:])
			end += size
			count++
		}
		if count < n {
			return false
		}
		if strings.EqualFold(s[i:end], substr) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return false
}
