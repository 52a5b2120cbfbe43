//go:build postgres || all_adapters

package cli

import (
	// Register the PostgreSQL adapter.
	_ "github.com/ekaya-inc/grepdb/pkg/adapters/datasource/postgres"
)
