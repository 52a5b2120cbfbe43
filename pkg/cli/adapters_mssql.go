//go:build mssql || all_adapters

package cli

import (
	// Register the SQL Server adapter.
	_ "github.com/ekaya-inc/grepdb/pkg/adapters/datasource/mssql"
)
