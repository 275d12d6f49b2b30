package parser

import (
	"fmt"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
	"mercator-hq/ruler/pkg/rules/lexer"
)

// DefaultMaxDepth is the default limit on parenthesis nesting.
const DefaultMaxDepth = 200

const endOfInput = "end of input"

// Boolean literal identifiers.
const (
	literalTrue  = "true"
	literalFalse = "false"
)

// Parser parses rule strings into rule trees.
type Parser struct {
	maxDepth     int // Maximum parenthesis nesting (default: 200)
	maxTreeDepth int // Maximum levels of the produced tree (default: ast.DefaultMaxDepth)
}

// NewParser creates a new parser with default configuration.
func NewParser() *Parser {
	return &Parser{
		maxDepth:     DefaultMaxDepth,
		maxTreeDepth: ast.DefaultMaxDepth,
	}
}

// WithMaxDepth sets the maximum parenthesis nesting depth.
// Non-positive values restore the default.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	p.maxDepth = depth
	return p
}

// MaxDepth returns the configured nesting limit.
func (p *Parser) MaxDepth() int {
	return p.maxDepth
}

// WithMaxTreeDepth sets the maximum number of levels of a parsed tree. A
// long AND/OR chain deepens the tree without any parentheses, so this bound
// is separate from the nesting limit. Keep it at or below the depth accepted
// by ast.Deserialize so every parsed tree can be decoded again.
// Non-positive values restore the default.
func (p *Parser) WithMaxTreeDepth(depth int) *Parser {
	if depth <= 0 {
		depth = ast.DefaultMaxDepth
	}
	p.maxTreeDepth = depth
	return p
}

// MaxTreeDepth returns the configured tree depth limit.
func (p *Parser) MaxTreeDepth() int {
	return p.maxTreeDepth
}

// ParseString tokenizes and parses a rule string. Lexical failures are
// returned as *errors.LexError, grammar failures as *errors.ParseError.
func (p *Parser) ParseString(input string) (ast.Node, error) {
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		return nil, err
	}
	return p.parse(tokens, len(input))
}

// Parse builds a tree from an already tokenized rule. It never returns a
// partial tree: either the whole token sequence forms one expression or an
// error is returned.
func (p *Parser) Parse(tokens []lexer.Token) (ast.Node, error) {
	end := 0
	if n := len(tokens); n > 0 {
		end = tokenEnd(tokens[n-1])
	}
	return p.parse(tokens, end)
}

func (p *Parser) parse(tokens []lexer.Token, end int) (ast.Node, error) {
	s := &state{
		tokens:       tokens,
		end:          end,
		maxDepth:     p.maxDepth,
		maxTreeDepth: p.maxTreeDepth,
	}

	node, _, err := s.parseOr()
	if err != nil {
		return nil, err
	}

	if tok, ok := s.peek(); ok {
		return nil, &ruleErrors.ParseError{
			Expected: "AND, OR or end of input",
			Found:    tok.String(),
			Position: tok.Pos,
		}
	}

	return node, nil
}

// ParseString parses a rule string with a default parser.
func ParseString(input string) (ast.Node, error) {
	return NewParser().ParseString(input)
}

// Parse parses a token sequence with a default parser.
func Parse(tokens []lexer.Token) (ast.Node, error) {
	return NewParser().Parse(tokens)
}

// state is the cursor of a single parse call.
type state struct {
	tokens   []lexer.Token
	pos      int
	end      int // Byte offset reported for errors at end of input
	depth    int
	maxDepth int

	maxTreeDepth int
}

func (s *state) peek() (lexer.Token, bool) {
	if s.pos >= len(s.tokens) {
		return lexer.Token{}, false
	}
	return s.tokens[s.pos], true
}

func (s *state) next() (lexer.Token, bool) {
	tok, ok := s.peek()
	if ok {
		s.pos++
	}
	return tok, ok
}

// matchLogical consumes the next token if it is the given keyword.
func (s *state) matchLogical(keyword string) (lexer.Token, bool) {
	tok, ok := s.peek()
	if !ok || tok.Kind != lexer.Logical || tok.Text != keyword {
		return lexer.Token{}, false
	}
	s.pos++
	return tok, true
}

// join builds the operator for tok over left and right, failing when the
// resulting tree would be deeper than the limit.
func (s *state) join(tok lexer.Token, c ast.Connective, left ast.Node, leftDepth int, right ast.Node, rightDepth int) (ast.Node, int, error) {
	depth := 1 + max(leftDepth, rightDepth)
	if depth > s.maxTreeDepth {
		return nil, 0, &ruleErrors.ParseError{
			Expected: fmt.Sprintf("a rule tree of at most %d levels", s.maxTreeDepth),
			Found:    tok.String(),
			Position: tok.Pos,
		}
	}
	return ast.NewOperator(c, left, right), depth, nil
}

func (s *state) errorAt(expected string, tok lexer.Token, ok bool) error {
	if !ok {
		return &ruleErrors.ParseError{Expected: expected, Found: endOfInput, Position: s.end}
	}
	return &ruleErrors.ParseError{Expected: expected, Found: tok.String(), Position: tok.Pos}
}

// The parse functions return each subtree with its depth.

// or_expr := and_expr (OR and_expr)*
func (s *state) parseOr() (ast.Node, int, error) {
	left, leftDepth, err := s.parseAnd()
	if err != nil {
		return nil, 0, err
	}

	for {
		tok, ok := s.matchLogical(lexer.KeywordOr)
		if !ok {
			return left, leftDepth, nil
		}
		right, rightDepth, err := s.parseAnd()
		if err != nil {
			return nil, 0, err
		}
		left, leftDepth, err = s.join(tok, ast.Or, left, leftDepth, right, rightDepth)
		if err != nil {
			return nil, 0, err
		}
	}
}

// and_expr := primary (AND primary)*
func (s *state) parseAnd() (ast.Node, int, error) {
	left, leftDepth, err := s.parsePrimary()
	if err != nil {
		return nil, 0, err
	}

	for {
		tok, ok := s.matchLogical(lexer.KeywordAnd)
		if !ok {
			return left, leftDepth, nil
		}
		right, rightDepth, err := s.parsePrimary()
		if err != nil {
			return nil, 0, err
		}
		left, leftDepth, err = s.join(tok, ast.And, left, leftDepth, right, rightDepth)
		if err != nil {
			return nil, 0, err
		}
	}
}

// primary := '(' expr ')' | comparison
func (s *state) parsePrimary() (ast.Node, int, error) {
	tok, ok := s.peek()
	if !ok {
		return nil, 0, s.errorAt("'(' or attribute name", tok, ok)
	}

	switch tok.Kind {
	case lexer.LParen:
		if s.depth >= s.maxDepth {
			return nil, 0, &ruleErrors.ParseError{
				Expected: fmt.Sprintf("at most %d levels of nesting", s.maxDepth),
				Found:    tok.String(),
				Position: tok.Pos,
			}
		}
		s.pos++
		s.depth++

		node, depth, err := s.parseOr()
		if err != nil {
			return nil, 0, err
		}

		closing, ok := s.next()
		if !ok || closing.Kind != lexer.RParen {
			return nil, 0, s.errorAt("')'", closing, ok)
		}
		s.depth--
		return node, depth, nil

	case lexer.Identifier:
		node, err := s.parseComparison()
		if err != nil {
			return nil, 0, err
		}
		return node, 1, nil

	default:
		return nil, 0, s.errorAt("'(' or attribute name", tok, ok)
	}
}

// comparison := Identifier ComparisonOp Literal
func (s *state) parseComparison() (ast.Node, error) {
	attr, _ := s.next()

	opTok, ok := s.next()
	if !ok || opTok.Kind != lexer.Comparison {
		return nil, s.errorAt("comparison operator", opTok, ok)
	}
	op := ast.Comparison(opTok.Text)
	if !op.IsValid() {
		return nil, s.errorAt("comparison operator", opTok, ok)
	}

	litTok, ok := s.next()
	if !ok {
		return nil, s.errorAt("literal", litTok, ok)
	}

	var value ast.Literal
	switch {
	case litTok.Kind == lexer.Number:
		value = ast.NumberLiteral(litTok.Num)
	case litTok.Kind == lexer.String:
		value = ast.StringLiteral(litTok.Text)
	case litTok.Kind == lexer.Identifier && litTok.Text == literalTrue:
		value = ast.BoolLiteral(true)
	case litTok.Kind == lexer.Identifier && litTok.Text == literalFalse:
		value = ast.BoolLiteral(false)
	default:
		return nil, s.errorAt("literal", litTok, ok)
	}

	return ast.NewOperand(attr.Text, op, value), nil
}

// tokenEnd returns the byte offset just past tok in its source.
func tokenEnd(tok lexer.Token) int {
	if tok.Kind == lexer.String {
		return tok.Pos + len(tok.Text) + 2
	}
	return tok.Pos + len(tok.Text)
}
