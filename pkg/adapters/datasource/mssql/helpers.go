//go:build mssql || all_adapters

package mssql

import (
	"fmt"
	"strings"
)

// quoteName returns a bracket-quoted identifier, the same escaping QUOTENAME() applies.
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// buildFullyQualifiedName builds a fully qualified table name: [schema].[table]
func buildFullyQualifiedName(schema, table string) string {
	if schema == "" {
		return quoteName(table)
	}
	return fmt.Sprintf("%s.%s", quoteName(schema), quoteName(table))
}

// normalizeType maps SQL Server character types onto MySQL spelling so the
// string-type predicate applies unchanged. Other types pass through lower-cased.
func normalizeType(sqlServerType string) string {
	t := strings.ToLower(sqlServerType)

	switch t {
	case "char", "nchar":
		return "char"
	case "varchar", "nvarchar":
		return "varchar"
	case "text", "ntext":
		return "text"
	default:
		return t
	}
}

// isSystemSchema reports schemas that never hold user tables.
func isSystemSchema(name string) bool {
	switch strings.ToLower(name) {
	case "sys", "information_schema", "guest":
		return true
	}
	return strings.HasPrefix(strings.ToLower(name), "db_")
}
