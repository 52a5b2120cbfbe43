package sqldump

// TokenType classifies a single word of a dump statement.
type TokenType int

const (
	TokenKeyword TokenType = iota
	TokenQuotedIdentifier
	TokenParenOpen
	TokenParenClose
	TokenDataType
	TokenComma
	TokenKeyValue
	TokenNumber
	TokenString
	TokenNull
	TokenCollation
	TokenCharset
	TokenVariableType
	TokenVariable
	TokenVariableAssignment
)

var tokenTypeNames = map[TokenType]string{
	TokenKeyword:            "keyword",
	TokenQuotedIdentifier:   "quoted_identifier",
	TokenParenOpen:          "paren_open",
	TokenParenClose:         "paren_close",
	TokenDataType:           "data_type",
	TokenComma:              "comma",
	TokenKeyValue:           "key_value",
	TokenNumber:             "number",
	TokenString:             "string",
	TokenNull:               "null",
	TokenCollation:          "collation",
	TokenCharset:            "charset",
	TokenVariableType:       "variable_type",
	TokenVariable:           "variable",
	TokenVariableAssignment: "variable_assignment",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Token is one classified word. Keywords and variable types are upper-cased;
// every other value is kept as written.
type Token struct {
	Type  TokenType
	Value string
}

// Is reports whether the token has the given type and value.
func (t Token) Is(typ TokenType, value string) bool {
	return t.Type == typ && t.Value == value
}

// IsKeyword reports whether the token is the given (upper-case) keyword.
func (t Token) IsKeyword(keyword string) bool {
	return t.Is(TokenKeyword, keyword)
}

// TokenBundle is one delimited statement, or one comment, of a dump.
// Raw holds the exact bytes consumed to produce it.
type TokenBundle struct {
	Raw    string
	Tokens []Token
}

// HasTokens is false for comments and blank statements.
func (b *TokenBundle) HasTokens() bool {
	return b != nil && len(b.Tokens) > 0
}
