package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a term that looks like SQL injection.
type InjectionCheckResult struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	Name        string // which term was checked ("search", "replace")
	Value       string
}

// CheckTermForInjection uses libinjection to detect SQL injection patterns in
// a search or replacement term.
//
// Terms are always bound as parameters, so a hit is not a vulnerability. It
// usually means SQL was pasted where a literal was meant, and callers warn
// before rewriting data with it.
//
// Returns nil if no injection pattern is detected.
//
// Example:
//
//	result := CheckTermForInjection("replace", "'; DROP TABLE users--")
//	// result.Fingerprint == "s&1c" (or similar)
//	// result.Name == "replace"
func CheckTermForInjection(name, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Fingerprint: string(fingerprint),
		Name:        name,
		Value:       value,
	}
}

// CheckTerms checks every named term and returns the suspicious ones in the
// order given. names and values are parallel.
func CheckTerms(names, values []string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for i, name := range names {
		if i >= len(values) {
			break
		}
		if result := CheckTermForInjection(name, values[i]); result != nil {
			results = append(results, result)
		}
	}
	return results
}
