// Package sqldump reads mysqldump output without a database connection: a
// streaming tokenizer splits the dump into classified statements and a parser
// turns CREATE TABLE statements into table metadata.
package sqldump

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultDelimiter terminates statements unless a DELIMITER directive says otherwise.
const DefaultDelimiter = ";"

var (
	ErrUnknownKeyword  = errors.New("unknown keyword")
	ErrMalformedNull   = errors.New("malformed NULL")
	ErrUnterminated    = errors.New("unterminated quoted value")
	ErrUnexpectedInput = errors.New("unexpected input")
)

// SyntaxError is a fatal tokenizer error at a byte offset of the dump.
type SyntaxError struct {
	Offset int64
	Word   string
	Msg    string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sqldump: %s %q at offset %d", e.Msg, e.Word, e.Offset)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

var keywords = toSet(
	"AUTO_INCREMENT", "CASCADE", "CHARACTER", "CHARSET", "COLLATE", "COLLATION",
	"COMMENT", "CONSTRAINT", "CREATE", "CURRENT_TIMESTAMP", "DATABASE", "DEFAULT",
	"DELETE", "DELIMITER", "DROP", "EXISTS", "FOREIGN", "FULLTEXT", "IF", "INDEX",
	"INSERT", "INTO", "KEY", "LOCK", "NOT", "NULL", "ON", "PRIMARY", "REFERENCES",
	"TABLE", "TABLES", "UNIQUE", "UNLOCK", "UNSIGNED", "UPDATE", "USE", "VALUES",
	"WRITE", "ZEROFILL",
)

var dataTypes = toSet(
	"BIT", "TINYINT", "BOOL", "BOOLEAN", "SMALLINT", "MEDIUMINT", "INT", "INTEGER",
	"BIGINT", "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "DATE", "DATETIME",
	"TIMESTAMP", "TIME", "YEAR", "CHAR", "VARCHAR", "BINARY", "VARBINARY",
	"TINYBLOB", "TINYTEXT", "BLOB", "TEXT", "MEDIUMBLOB", "MEDIUMTEXT", "LONGBLOB",
	"LONGTEXT", "ENUM", "SET", "JSON",
)

var variableTypes = toSet("GLOBAL", "LOCAL", "SESSION")

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithDelimiter sets the initial statement delimiter.
func WithDelimiter(delimiter string) Option {
	return func(t *Tokenizer) {
		if delimiter != "" {
			t.delimiter = delimiter
		}
	}
}

// Tokenizer splits a dump into statements on demand, one bundle per call to Next.
// It is not restartable: after Next returns an error every later call returns
// the same error.
type Tokenizer struct {
	r         *byteReader
	delimiter string
	raw       []byte
	err       error
}

func NewTokenizer(r io.Reader, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		r:         newByteReader(r),
		delimiter: DefaultDelimiter,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OpenFile opens a dump for tokenizing. The caller closes the returned Closer.
func OpenFile(path string, opts ...Option) (*Tokenizer, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dump: %w", err)
	}
	return NewTokenizer(f, opts...), f, nil
}

// Next returns the next statement or comment. It returns io.EOF once the dump
// is exhausted.
func (t *Tokenizer) Next() (*TokenBundle, error) {
	if t.err != nil {
		return nil, t.err
	}
	bundle, err := t.next()
	if err != nil {
		t.err = err
		return nil, err
	}
	return bundle, nil
}

func (t *Tokenizer) next() (*TokenBundle, error) {
	t.raw = t.raw[:0]
	var acc []byte
	for {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) && len(acc) > 0 {
				st := &statement{acc: acc}
				if err := t.flushWord(st); err != nil {
					return nil, err
				}
				return t.bundle(st.tokens), nil
			}
			return nil, err
		}
		if len(acc) == 0 && isSpace(c) {
			continue
		}
		acc = append(acc, c)

		switch s := string(acc); {
		case s == "#" || s == "--":
			if err := t.skipLine(); err != nil {
				return nil, err
			}
			return t.bundle(nil), nil
		case s == "/*":
			if err := t.skipBlockComment(); err != nil {
				return nil, err
			}
			return t.bundle(nil), nil
		case len(acc) > 2:
			return t.statement(acc)
		}
	}
}

// statement accumulates one delimited statement.
type statement struct {
	tokens []Token
	acc    []byte
	insert bool
}

func (s *statement) add(typ TokenType, value string) {
	s.tokens = append(s.tokens, Token{Type: typ, Value: value})
	if len(s.tokens) == 1 && typ == TokenKeyword && value == "INSERT" {
		s.insert = true
	}
}

func (s *statement) last() (Token, bool) {
	if len(s.tokens) == 0 {
		return Token{}, false
	}
	return s.tokens[len(s.tokens)-1], true
}

// balanced reports whether the accumulated word has no unclosed parenthesis,
// so a following comma or close paren ends the word. Parentheses inside
// quoted text are ignored.
func (s *statement) balanced() bool {
	depth := 0
	var quote byte
	for _, c := range s.acc {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
	}
	return depth <= 0
}

func (t *Tokenizer) statement(prefix []byte) (*TokenBundle, error) {
	st := &statement{acc: append([]byte(nil), prefix...)}
	delim := []byte(t.delimiter)

	for {
		c, err := t.read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			if err := t.flushWord(st); err != nil {
				return nil, err
			}
			return t.bundle(st.tokens), nil
		}

		st.acc = append(st.acc, c)
		if bytes.HasSuffix(st.acc, delim) {
			st.acc = st.acc[:len(st.acc)-len(delim)]
			if err := t.flushWord(st); err != nil {
				return nil, err
			}
			return t.bundle(st.tokens), nil
		}
		st.acc = st.acc[:len(st.acc)-1]

		switch {
		case isSpace(c):
			if len(st.acc) == 0 {
				continue
			}
			if len(st.tokens) == 0 {
				switch strings.ToUpper(string(st.acc)) {
				case "SET":
					st.acc = st.acc[:0]
					return t.variableAssignment()
				case "DELIMITER":
					return t.delimiterDirective()
				}
			}
			if err := t.flushWord(st); err != nil {
				return nil, err
			}

		case c == '`':
			st.acc = st.acc[:0]
			ident, err := t.quotedIdentifier()
			if err != nil {
				return nil, err
			}
			st.add(TokenQuotedIdentifier, ident)

		case (c == ',' || c == ')') && len(st.acc) > 0 && st.balanced():
			if err := t.flushWord(st); err != nil {
				return nil, err
			}
			st.add(punctuation(c))

		case (c == '\'' || c == '"') && len(st.acc) > 0:
			s, err := t.quoted(c)
			if err != nil {
				return nil, err
			}
			st.acc = append(st.acc, c)
			st.acc = append(st.acc, s...)
			st.acc = append(st.acc, c)

		case len(st.acc) > 0:
			st.acc = append(st.acc, c)
			if string(st.acc) == "/*" {
				st.acc = st.acc[:0]
				if err := t.skipBlockComment(); err != nil {
					return nil, err
				}
			}

		case isDigit(c) || c == '-':
			done, err := t.number(st, c, delim)
			if err != nil {
				return nil, err
			}
			if done {
				return t.bundle(st.tokens), nil
			}

		case c == '\'' || c == '"':
			s, err := t.quoted(c)
			if err != nil {
				return nil, err
			}
			st.add(TokenString, s)

		case c == 'N' && st.insert:
			if err := t.null(); err != nil {
				return nil, err
			}
			st.add(TokenNull, "NULL")

		case c == ',' || c == '(' || c == ')':
			st.add(punctuation(c))

		default:
			st.acc = append(st.acc, c)
		}
	}
}

func punctuation(c byte) (TokenType, string) {
	switch c {
	case ',':
		return TokenComma, ","
	case '(':
		return TokenParenOpen, "("
	default:
		return TokenParenClose, ")"
	}
}

// flushWord classifies the accumulated word and resets the accumulator.
func (t *Tokenizer) flushWord(st *statement) error {
	if len(st.acc) == 0 {
		return nil
	}
	word := string(st.acc)
	st.acc = st.acc[:0]

	if prev, ok := st.last(); ok && prev.Type == TokenKeyword {
		switch prev.Value {
		case "COLLATE":
			st.add(TokenCollation, word)
			return nil
		case "CHARSET":
			st.add(TokenCharset, word)
			return nil
		case "SET":
			st.add(TokenCharset, word)
			return nil
		case "CHARACTER":
			if strings.EqualFold(word, "SET") {
				st.add(TokenKeyword, "SET")
				return nil
			}
		}
	}

	head, _, _ := strings.Cut(word, "(")
	upper := strings.ToUpper(head)
	switch {
	case isDataType(upper):
		st.add(TokenDataType, word)
	case isKeyValue(word):
		st.add(TokenKeyValue, word)
	case isKeyword(upper):
		st.add(TokenKeyword, strings.ToUpper(word))
	default:
		return t.syntaxError(word, "unknown keyword", ErrUnknownKeyword)
	}
	return nil
}

// number reads a numeric literal whose first byte is first. It reports whether
// the statement delimiter ended the number.
func (t *Tokenizer) number(st *statement, first byte, delim []byte) (bool, error) {
	acc := []byte{first}
	for {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				st.add(TokenNumber, string(acc))
				return true, nil
			}
			return false, err
		}
		switch {
		case c == ',' || c == ')':
			st.add(TokenNumber, string(acc))
			st.add(punctuation(c))
			return false, nil
		case isSpace(c):
			st.add(TokenNumber, string(acc))
			return false, nil
		}
		acc = append(acc, c)
		if bytes.HasSuffix(acc, delim) {
			st.add(TokenNumber, string(acc[:len(acc)-len(delim)]))
			return true, nil
		}
	}
}

// quoted reads a string literal up to its closing quote. Backslash escapes and
// doubled quotes are kept as written.
func (t *Tokenizer) quoted(quote byte) (string, error) {
	start := t.r.Offset()
	var acc []byte
	for {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", &SyntaxError{Offset: start, Word: string(quote) + string(acc), Msg: "unterminated string", Err: ErrUnterminated}
			}
			return "", err
		}
		switch {
		case c == '\\':
			acc = append(acc, c)
			next, err := t.read()
			if err != nil {
				continue
			}
			acc = append(acc, next)
		case c == quote:
			if p := t.r.Peek(1); len(p) == 1 && p[0] == quote {
				_, _ = t.read()
				acc = append(acc, c, c)
				continue
			}
			return string(acc), nil
		default:
			acc = append(acc, c)
		}
	}
}

func (t *Tokenizer) quotedIdentifier() (string, error) {
	start := t.r.Offset()
	var acc []byte
	for {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", &SyntaxError{Offset: start, Word: "`" + string(acc), Msg: "unterminated identifier", Err: ErrUnterminated}
			}
			return "", err
		}
		if c == '`' {
			if p := t.r.Peek(1); len(p) == 1 && p[0] == '`' {
				_, _ = t.read()
				acc = append(acc, c)
				continue
			}
			return string(acc), nil
		}
		acc = append(acc, c)
	}
}

// null consumes the remainder of a NULL literal inside INSERT values.
func (t *Tokenizer) null() error {
	word := []byte{'N'}
	for i := 0; i < 3; i++ {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		word = append(word, c)
	}
	if !strings.EqualFold(string(word), "NULL") {
		return t.syntaxError(string(word), "malformed NULL value", ErrMalformedNull)
	}
	return nil
}

// variableAssignment tokenizes the remainder of a SET statement.
func (t *Tokenizer) variableAssignment() (*TokenBundle, error) {
	tokens := []Token{{Type: TokenKeyword, Value: "SET"}}
	delim := []byte(t.delimiter)
	var acc []byte

	flush := func() {
		if len(acc) > 0 {
			tokens = append(tokens, variableComponent(string(acc)))
			acc = acc[:0]
		}
	}

	for {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				return t.bundle(tokens), nil
			}
			return nil, err
		}

		acc = append(acc, c)
		if bytes.HasSuffix(acc, delim) {
			acc = acc[:len(acc)-len(delim)]
			flush()
			return t.bundle(tokens), nil
		}
		acc = acc[:len(acc)-1]

		switch {
		case isSpace(c):
			flush()
		case c == ',':
			flush()
			tokens = append(tokens, Token{Type: TokenComma, Value: ","})
		case c == '=':
			flush()
			tokens = append(tokens, Token{Type: TokenVariableAssignment, Value: "="})
		case (c == '\'' || c == '"') && len(acc) == 0:
			s, err := t.quoted(c)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Type: TokenString, Value: s})
		default:
			acc = append(acc, c)
		}
	}
}

func variableComponent(component string) Token {
	upper := strings.ToUpper(component)
	if _, ok := variableTypes[upper]; ok {
		return Token{Type: TokenVariableType, Value: upper}
	}
	if upper == "DEFAULT" {
		return Token{Type: TokenKeyword, Value: "DEFAULT"}
	}
	if isNumeric(component) {
		return Token{Type: TokenNumber, Value: component}
	}
	return Token{Type: TokenVariable, Value: component}
}

// delimiterDirective switches the statement delimiter for the rest of the dump.
func (t *Tokenizer) delimiterDirective() (*TokenBundle, error) {
	var acc []byte
	for {
		c, err := t.read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if err != nil || c == '\n' {
			break
		}
		acc = append(acc, c)
	}
	delimiter := strings.TrimSpace(string(acc))
	if delimiter == "" {
		return nil, t.syntaxError("DELIMITER", "missing delimiter", ErrUnexpectedInput)
	}
	t.delimiter = delimiter
	return t.bundle([]Token{
		{Type: TokenKeyword, Value: "DELIMITER"},
		{Type: TokenString, Value: delimiter},
	}), nil
}

func (t *Tokenizer) skipLine() error {
	for {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if c == '\n' {
			return nil
		}
	}
}

// skipBlockComment consumes up to and including "*/". Executable comments
// ("/*!" and "/*+") are statements of their own, so a trailing delimiter is
// consumed with them.
func (t *Tokenizer) skipBlockComment() error {
	executable := false
	var prev byte
	for i := 0; ; i++ {
		c, err := t.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if i == 0 && (c == '!' || c == '+') {
			executable = true
		}
		if prev == '*' && c == '/' {
			break
		}
		prev = c
	}
	if executable && bytes.Equal(t.r.Peek(len(t.delimiter)), []byte(t.delimiter)) {
		for range t.delimiter {
			_, _ = t.read()
		}
	}
	return nil
}

func (t *Tokenizer) read() (byte, error) {
	c, err := t.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("read dump: %w", err)
	}
	t.raw = append(t.raw, c)
	return c, nil
}

func (t *Tokenizer) bundle(tokens []Token) *TokenBundle {
	return &TokenBundle{Raw: string(t.raw), Tokens: tokens}
}

func (t *Tokenizer) syntaxError(word, msg string, err error) error {
	return &SyntaxError{Offset: t.r.Offset(), Word: word, Msg: msg, Err: err}
}

// isKeyValue reports whether word is an option assignment such as
// ENGINE=InnoDB or COMMENT='a = b'. Only the part before any quote counts.
func isKeyValue(word string) bool {
	if i := strings.IndexAny(word, `'"`); i >= 0 {
		word = word[:i]
	}
	key, value, ok := strings.Cut(word, "=")
	return ok && key != "" && !strings.Contains(value, "=")
}

func isKeyword(upper string) bool {
	_, ok := keywords[upper]
	return ok
}

func isDataType(upper string) bool {
	_, ok := dataTypes[upper]
	return ok
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	s = strings.TrimPrefix(s, "-")
	dot := false
	for i := 0; i < len(s); i++ {
		switch {
		case isDigit(s[i]):
		case s[i] == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return s != "" && s != "."
}
