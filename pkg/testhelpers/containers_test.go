//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLFixtures(t *testing.T) {
	testDB := GetTestMySQL(t)
	ctx := context.Background()

	tests := []struct {
		table    string
		expected int
	}{
		{"posts", 4},
		{"options", 3},
		{"counters", 2},
	}

	for _, tt := range tests {
		var count int
		err := testDB.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&count)
		require.NoError(t, err, tt.table)
		assert.Equal(t, tt.expected, count, tt.table)
	}
}

func TestPostgresFixtures(t *testing.T) {
	testDB := GetTestPostgres(t)

	var count int
	err := testDB.Pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM posts").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
