package replace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/grepdb/pkg/apperrors"
	"github.com/ekaya-inc/grepdb/pkg/models"
)

func testColumn() *models.ColumnMetadata {
	return models.NewColumnMetadata("my_database", "my_table", "my_column", "VARCHAR(255)", models.IntPtr(255), false, true, false)
}

func TestSerializedStrategy_CanReplace(t *testing.T) {
	s := NewSerializedStrategy()
	subject := `O:8:"stdClass":2:{s:3:"bar";s:24:"this string contains bob";s:3:"bat";i:1;}`

	assert.True(t, s.CanReplace("bob", subject))
	assert.False(t, s.CanReplace("sally", subject), "term not present")
	assert.False(t, s.CanReplace("bob", "this string contains bob"), "not serialized")
	assert.True(t, s.CanReplace("bar", `a:1:{s:3:"bar";s:3:"baz";}`), "only present in a key")
	assert.True(t, s.CanReplace("stdClass", subject), "only present in a class name")
}

func TestSerializedStrategy_Replace(t *testing.T) {
	tests := []struct {
		name    string
		search  string
		subject string
		want    string
		count   int
		errors  []string
	}{
		{
			name:    "not serialized",
			search:  "foo",
			subject: "foo bar baz bat",
			want:    "foo bar baz bat",
			count:   0,
			errors:  []string{"Failed to deserialize field"},
		},
		{
			name:    "string one",
			search:  "foo",
			subject: `s:15:"foo bar baz bat";`,
			want:    `s:15:"qux bar baz bat";`,
			count:   1,
		},
		{
			name:    "string multiple",
			search:  "foo",
			subject: `s:19:"foo bar baz bat foo";`,
			want:    `s:19:"qux bar baz bat qux";`,
			count:   2,
		},
		{
			name:    "string not found",
			search:  "test",
			subject: `s:19:"foo bar baz bat foo";`,
			want:    `s:19:"foo bar baz bat foo";`,
			count:   0,
			errors:  []string{`Search term "test" not found in subject "s:19:"foo bar baz bat foo";"`},
		},
		{
			name:    "array one",
			search:  "foo",
			subject: `a:4:{i:0;s:3:"foo";i:1;s:3:"bar";i:2;s:3:"baz";i:3;s:3:"bat";}`,
			want:    `a:4:{i:0;s:3:"qux";i:1;s:3:"bar";i:2;s:3:"baz";i:3;s:3:"bat";}`,
			count:   1,
		},
		{
			name:    "array multiple",
			search:  "foo",
			subject: `a:5:{i:0;s:3:"foo";i:1;s:3:"bar";i:2;s:3:"baz";i:3;s:3:"bat";i:4;s:6:"foobar";}`,
			want:    `a:5:{i:0;s:3:"qux";i:1;s:3:"bar";i:2;s:3:"baz";i:3;s:3:"bat";i:4;s:6:"quxbar";}`,
			count:   2,
		},
		{
			name:    "object one",
			search:  "foo",
			subject: `O:8:"stdClass":3:{s:3:"bar";s:24:"this string contains foo";s:3:"baz";s:17:"this is an object";s:3:"bat";i:1;}`,
			want:    `O:8:"stdClass":3:{s:3:"bar";s:24:"this string contains qux";s:3:"baz";s:17:"this is an object";s:3:"bat";i:1;}`,
			count:   1,
		},
		{
			name:    "object multiple",
			search:  "bar",
			subject: `O:6:"FooBar":3:{s:3:"foo";s:3:"bar";s:3:"baz";s:3:"bat";s:4:"test";s:3:"bar";}`,
			want:    `O:6:"FooBar":3:{s:3:"foo";s:3:"qux";s:3:"baz";s:3:"bat";s:4:"test";s:3:"qux";}`,
			count:   2,
		},
	}

	s := NewSerializedStrategy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Replace(testColumn(), tt.search, "qux", tt.subject)

			assert.Equal(t, tt.want, result.NewValue)
			assert.Equal(t, tt.subject, result.OldValue)
			assert.Equal(t, tt.count, result.ReplacedCount)
			assert.Equal(t, tt.errors, result.Errors)
			assert.Equal(t, "my_column", result.Column.ColumnName)
		})
	}
}

func TestStringStrategy_CanReplace(t *testing.T) {
	s := NewStringStrategy()

	assert.True(t, s.CanReplace("foo", "foo bar"))
	assert.False(t, s.CanReplace("FOO", "foo bar"), "matching is case-sensitive")
	assert.False(t, s.CanReplace("baz", "foo bar"))
	assert.False(t, s.CanReplace("", "foo bar"))
}

func TestStringStrategy_Replace(t *testing.T) {
	tests := []struct {
		name    string
		search  string
		replace string
		subject string
		want    string
		count   int
		errs    int
	}{
		{"single", "foo", "qux", "foo bar baz bat", "qux bar baz bat", 1, 0},
		{"multiple", "foo", "qux", "foo bar foo bat foo", "qux bar qux bat qux", 3, 0},
		{"non-overlapping", "aa", "b", "aaaa", "bb", 2, 0},
		{"longer replacement", "a", "xyz", "banana", "bxyznxyznxyz", 3, 0},
		{"not found", "zzz", "qux", "foo bar", "foo bar", 0, 1},
		{"case mismatch", "FOO", "qux", "foo bar", "foo bar", 0, 1},
	}

	s := NewStringStrategy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Replace(testColumn(), tt.search, tt.replace, tt.subject)

			assert.Equal(t, tt.want, result.NewValue)
			assert.Equal(t, tt.count, result.ReplacedCount)
			assert.Len(t, result.Errors, tt.errs)
		})
	}
}

func TestStringStrategy_NotFoundMessage(t *testing.T) {
	result := NewStringStrategy().Replace(testColumn(), "test", "qux", "foo bar baz bat")

	assert.Equal(t, []string{`Search term "test" not found in subject "foo bar baz bat"`}, result.Errors)
}

func TestChain_PrefersSerialized(t *testing.T) {
	chain := DefaultChain()
	subject := `s:22:"http://old.example.com";`

	strategy, err := chain.Select("http://old.example.com", subject)
	require.NoError(t, err)
	assert.Equal(t, "serialized", strategy.Name())

	result, err := chain.Replace(testColumn(), "http://old.example.com", "https://new.example.com", subject)
	require.NoError(t, err)
	assert.Equal(t, `s:23:"https://new.example.com";`, result.NewValue)
	assert.Equal(t, 1, result.ReplacedCount)
	assert.Empty(t, result.Errors)
}

func TestChain_FallsBackToString(t *testing.T) {
	chain := DefaultChain()

	strategy, err := chain.Select("old", "visit old site")
	require.NoError(t, err)
	assert.Equal(t, "string", strategy.Name())

	result, err := chain.Replace(testColumn(), "old", "new", "visit old site")
	require.NoError(t, err)
	assert.Equal(t, "visit new site", result.NewValue)
}

func TestChain_NoMatchStillReportsError(t *testing.T) {
	result, err := DefaultChain().Replace(testColumn(), "Old", "new", "visit old site")
	require.NoError(t, err)

	assert.Equal(t, "visit old site", result.NewValue)
	assert.Zero(t, result.ReplacedCount)
	assert.Len(t, result.Errors, 1)
}

func TestChain_KeyOnlyMatchLeavesSerializedValueIntact(t *testing.T) {
	chain := DefaultChain()
	subject := `a:1:{s:3:"foo";s:3:"bar";}`

	strategy, err := chain.Select("foo", subject)
	require.NoError(t, err)
	assert.Equal(t, "serialized", strategy.Name())

	result, err := chain.Replace(testColumn(), "foo", "quux", subject)
	require.NoError(t, err)
	assert.Equal(t, subject, result.NewValue)
	assert.Zero(t, result.ReplacedCount)
	assert.Equal(t, []string{`Search term "foo" not found in subject "` + subject + `"`}, result.Errors)
}

func TestChain_ClassNameMatchLeavesSerializedValueIntact(t *testing.T) {
	subject := `O:8:"stdClass":1:{s:1:"a";i:1;}`

	result, err := DefaultChain().Replace(testColumn(), "stdClass", "OtherClass", subject)
	require.NoError(t, err)
	assert.Equal(t, subject, result.NewValue)
	assert.Zero(t, result.ReplacedCount)
	assert.Len(t, result.Errors, 1)
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain().Replace(testColumn(), "a", "b", "a")
	assert.ErrorIs(t, err, apperrors.ErrNoStrategy)
}

func TestChain_Strategies(t *testing.T) {
	names := []string{}
	for _, s := range DefaultChain().Strategies() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"serialized", "string"}, names)
}
