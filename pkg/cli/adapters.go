package cli

import (
	// Register the MySQL adapter.
	_ "github.com/ekaya-inc/grepdb/pkg/adapters/datasource/mysql"
)
