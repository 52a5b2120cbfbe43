package mysql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/grepdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/grepdb/pkg/retry"
)

func TestQueryExecutor_Quoting(t *testing.T) {
	e := &QueryExecutor{}

	assert.Equal(t, "`posts`", e.QuoteIdentifier("posts"))
	assert.Equal(t, "`we``ird`", e.QuoteIdentifier("we`ird"))
	assert.Equal(t, "`wp`.`posts`", e.QualifiedTable("wp", "posts"))
	assert.Equal(t, "`posts`", e.QualifiedTable("", "posts"))
	assert.Equal(t, "?", e.Placeholder(1))
	assert.Equal(t, "?", e.Placeholder(7))
	assert.Equal(t, datasource.DialectMySQL, e.Dialect())
}

func TestSetNamesStatement(t *testing.T) {
	tests := []struct {
		name    string
		charset datasource.TableCharset
		want    string
	}{
		{"default", datasource.TableCharset{Charset: "DEFAULT", Collation: "DEFAULT"}, ""},
		{"empty", datasource.TableCharset{}, ""},
		{"charset and collation", datasource.TableCharset{Charset: "utf8mb4", Collation: "utf8mb4_unicode_520_ci"}, "SET NAMES 'utf8mb4' COLLATE 'utf8mb4_unicode_520_ci'"},
		{"charset only", datasource.TableCharset{Charset: "latin1", Collation: "DEFAULT"}, "SET NAMES 'latin1'"},
		{"collation only", datasource.TableCharset{Collation: "utf8mb4_general_ci"}, "SET NAMES 'utf8mb4' COLLATE 'utf8mb4_general_ci'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := setNamesStatement(tt.charset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionStatement_DefaultTableRestoresSessionDefaults(t *testing.T) {
	defaults := "SET NAMES 'utf8mb4' COLLATE 'utf8mb4_0900_ai_ci'"

	latin1, err := sessionStatement(datasource.TableCharset{Charset: "latin1", Collation: "latin1_swedish_ci"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, "SET NAMES 'latin1' COLLATE 'latin1_swedish_ci'", latin1)

	for _, table := range []datasource.TableCharset{
		{Charset: "DEFAULT", Collation: "DEFAULT"},
		{},
	} {
		got, err := sessionStatement(table, defaults)
		require.NoError(t, err)
		assert.Equal(t, defaults, got, "a table without a charset must not inherit the previous one")
	}
}

func TestSessionStatement_RejectsInvalidName(t *testing.T) {
	_, err := sessionStatement(datasource.TableCharset{Collation: "x' OR '1"}, "SET NAMES 'utf8mb4'")
	assert.Error(t, err)
}

func TestSetNamesStatement_RejectsInjection(t *testing.T) {
	_, err := setNamesStatement(datasource.TableCharset{Charset: "utf8'; DROP TABLE posts; --"})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	deadlock := fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	lockWait := fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	syntax := fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"})

	assert.True(t, retry.IsRetryable(classify(deadlock)))
	assert.True(t, retry.IsRetryable(classify(lockWait)))
	assert.False(t, retry.IsRetryable(classify(syntax)))

	var myErr *mysql.MySQLError
	require.True(t, errors.As(classify(deadlock), &myErr), "driver error stays reachable")
	assert.Equal(t, uint16(1213), myErr.Number)

	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain))
}
