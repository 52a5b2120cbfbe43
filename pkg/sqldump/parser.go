package sqldump

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ekaya-inc/grepdb/pkg/models"
)

// textMaxLength is the byte capacity MySQL gives TEXT and BLOB columns.
const textMaxLength = 65535

// Parser turns CREATE TABLE statements from a Tokenizer into table metadata.
// Every other statement is skipped.
type Parser struct {
	tokenizer    *Tokenizer
	databaseName string
}

// NewParser reads tables from t and attributes them to databaseName.
func NewParser(t *Tokenizer, databaseName string) *Parser {
	return &Parser{tokenizer: t, databaseName: databaseName}
}

// Next returns the next table in dump order, or io.EOF.
func (p *Parser) Next() (*models.TableMetadata, error) {
	for {
		bundle, err := p.tokenizer.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("tokenize: %w", err)
		}
		if !isCreateTable(bundle.Tokens) {
			continue
		}
		table, err := p.table(bundle.Tokens)
		if err != nil {
			return nil, err
		}
		if table != nil {
			return table, nil
		}
	}
}

func isCreateTable(tokens []Token) bool {
	return len(tokens) > 2 && tokens[0].IsKeyword("CREATE") && tokens[1].IsKeyword("TABLE")
}

func (p *Parser) table(tokens []Token) (*models.TableMetadata, error) {
	nameIdx := indexOf(tokens, 2, TokenQuotedIdentifier)
	if nameIdx < 0 {
		return nil, fmt.Errorf("create table: missing table name")
	}
	tableName := tokens[nameIdx].Value

	openIdx := indexOf(tokens, nameIdx+1, TokenParenOpen)
	closeIdx := lastIndexOf(tokens, TokenParenClose)
	if openIdx < 0 || closeIdx <= openIdx {
		return nil, fmt.Errorf("create table %s: missing column definitions", tableName)
	}

	engine, charset, collation := tableOptions(tokens[closeIdx+1:])

	groups := splitDefinitions(tokens[openIdx+1 : closeIdx])
	primary := map[string]struct{}{}
	indexed := map[string]struct{}{}
	for _, group := range groups {
		switch {
		case isPrimaryKey(group):
			addIdentifiers(primary, group)
		case isIndexDefinition(group):
			addIdentifiers(indexed, group)
		}
	}

	columns := make([]*models.ColumnMetadata, 0, len(groups))
	for _, group := range groups {
		if len(group) < 2 || group[0].Type != TokenQuotedIdentifier {
			continue
		}
		name := group[0].Value
		columnType := group[1].Value
		_, isPrimary := primary[name]
		_, isIndexed := indexed[name]

		columns = append(columns, models.NewColumnMetadata(
			p.databaseName,
			tableName,
			name,
			columnType,
			maxLength(columnType),
			isPrimary,
			!isNotNull(group),
			isIndexed || isPrimary,
		))
	}

	return models.NewTableMetadata(p.databaseName, tableName, engine, collation, charset, models.UnknownRowCount, columns), nil
}

// tableOptions reads ENGINE=, CHARSET= and COLLATE= from the tokens after the
// column block. Missing options are reported as models.DefaultTableOption.
func tableOptions(tokens []Token) (engine, charset, collation string) {
	engine, charset, collation = models.DefaultTableOption, models.DefaultTableOption, models.DefaultTableOption
	for _, tok := range tokens {
		if tok.Type != TokenKeyValue {
			continue
		}
		key, value, _ := strings.Cut(tok.Value, "=")
		switch strings.ToUpper(key) {
		case "ENGINE":
			engine = value
		case "CHARSET":
			charset = value
		case "COLLATE", "COLLATION":
			collation = value
		}
	}
	return engine, charset, collation
}

// splitDefinitions splits the column block on top-level commas.
func splitDefinitions(tokens []Token) [][]Token {
	var groups [][]Token
	var current []Token
	depth := 0
	for _, tok := range tokens {
		switch tok.Type {
		case TokenParenOpen:
			depth++
		case TokenParenClose:
			depth--
		case TokenComma:
			if depth == 0 {
				if len(current) > 0 {
					groups = append(groups, current)
				}
				current = nil
				continue
			}
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func isPrimaryKey(group []Token) bool {
	return len(group) > 1 && group[0].IsKeyword("PRIMARY") && group[1].IsKeyword("KEY")
}

func isIndexDefinition(group []Token) bool {
	if len(group) == 0 {
		return false
	}
	switch {
	case group[0].IsKeyword("KEY"), group[0].IsKeyword("INDEX"):
		return true
	case group[0].IsKeyword("UNIQUE"), group[0].IsKeyword("FULLTEXT"):
		return len(group) > 1 && (group[1].IsKeyword("KEY") || group[1].IsKeyword("INDEX"))
	}
	return false
}

// addIdentifiers collects the column names listed inside the definition's
// parentheses, skipping the optional index name before them.
func addIdentifiers(set map[string]struct{}, group []Token) {
	open := indexOf(group, 0, TokenParenOpen)
	if open < 0 {
		return
	}
	for _, tok := range group[open+1:] {
		if tok.Type == TokenQuotedIdentifier {
			set[tok.Value] = struct{}{}
		}
	}
}

func isNotNull(group []Token) bool {
	for i := 2; i+1 < len(group); i++ {
		if group[i].IsKeyword("NOT") && group[i+1].IsKeyword("NULL") {
			return true
		}
	}
	return false
}

// maxLength derives a byte capacity from a column type. Only sized VARCHAR
// columns and plain TEXT and BLOB columns have one.
func maxLength(columnType string) *int {
	upper := strings.ToUpper(strings.TrimSpace(columnType))
	if upper == "TEXT" || upper == "BLOB" {
		return models.IntPtr(textMaxLength)
	}
	if !strings.HasPrefix(upper, "VARCHAR(") || !strings.HasSuffix(upper, ")") {
		return nil
	}
	n, err := strconv.Atoi(upper[len("VARCHAR(") : len(upper)-1])
	if err != nil {
		return nil
	}
	return models.IntPtr(n)
}

func indexOf(tokens []Token, from int, typ TokenType) int {
	for i := from; i < len(tokens); i++ {
		if tokens[i].Type == typ {
			return i
		}
	}
	return -1
}

func lastIndexOf(tokens []Token, typ TokenType) int {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Type == typ {
			return i
		}
	}
	return -1
}

// TableReader streams the tables of a dump file.
type TableReader struct {
	*Parser
	closer io.Closer
}

// ParseAllTableMetadata opens the dump at path and returns a reader over its
// tables. The database name of every table is the path itself.
func ParseAllTableMetadata(path string) (*TableReader, error) {
	t, closer, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &TableReader{Parser: NewParser(t, path), closer: closer}, nil
}

func (r *TableReader) Close() error {
	return r.closer.Close()
}

// ReadAll parses every table of the dump at path.
func ReadAll(path string) ([]*models.TableMetadata, error) {
	reader, err := ParseAllTableMetadata(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var tables []*models.TableMetadata
	for {
		table, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return tables, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tables = append(tables, table)
	}
}
