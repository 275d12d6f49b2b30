package lexer

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

// comparisonOperators is ordered longest first so that ">=" wins over ">".
var comparisonOperators = []string{">=", "<=", "!=", "=", ">", "<"}

// Tokenize splits a rule string into tokens. It fails with a
// *errors.LexError on an unrecognized character, a malformed number, or an
// unterminated string literal.
func Tokenize(input string) ([]Token, error) {
	l := &lexer{input: input}
	return l.run()
}

type lexer struct {
	input  string
	pos    int
	tokens []Token
}

func (l *lexer) run() ([]Token, error) {
	for l.pos < len(l.input) {
		r, width := utf8.DecodeRuneInString(l.input[l.pos:])

		switch {
		case unicode.IsSpace(r):
			l.pos += width

		case isIdentStart(r):
			l.lexIdentifier()

		case isDigit(r) || (r == '-' && l.pos+1 < len(l.input) && isDigit(rune(l.input[l.pos+1]))):
			if err := l.lexNumber(); err != nil {
				return nil, err
			}

		case r == '\'':
			if err := l.lexString(); err != nil {
				return nil, err
			}

		case r == '(':
			l.emit(LParen, "(", 1)

		case r == ')':
			l.emit(RParen, ")", 1)

		default:
			if !l.lexComparison() {
				return nil, &ruleErrors.LexError{Position: l.pos, Char: r}
			}
		}
	}

	return l.tokens, nil
}

func (l *lexer) emit(kind TokenKind, text string, width int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Pos: l.pos})
	l.pos += width
}

// lexIdentifier consumes [A-Za-z_][A-Za-z0-9_]* and reclassifies AND/OR.
func (l *lexer) lexIdentifier() {
	start := l.pos
	end := start + 1
	for end < len(l.input) && isIdentPart(rune(l.input[end])) {
		end++
	}

	text := l.input[start:end]
	kind := Identifier
	if text == KeywordAnd || text == KeywordOr {
		kind = Logical
	}
	l.emit(kind, text, end-start)
}

// lexNumber consumes -?[0-9]+(\.[0-9]+)?
func (l *lexer) lexNumber() error {
	start := l.pos
	end := start
	if l.input[end] == '-' {
		end++
	}
	for end < len(l.input) && isDigit(rune(l.input[end])) {
		end++
	}

	if end < len(l.input) && l.input[end] == '.' {
		if end+1 >= len(l.input) || !isDigit(rune(l.input[end+1])) {
			return &ruleErrors.LexError{Position: end, Char: '.', Message: "decimal point must be followed by digits"}
		}
		end++
		for end < len(l.input) && isDigit(rune(l.input[end])) {
			end++
		}
	}

	text := l.input[start:end]
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return &ruleErrors.LexError{Position: start, Char: rune(text[0]), Message: "number out of range: " + text}
	}

	l.tokens = append(l.tokens, Token{Kind: Number, Text: text, Num: value, Pos: start})
	l.pos = end
	return nil
}

// lexString consumes a single-quoted literal. There are no escape sequences.
func (l *lexer) lexString() error {
	start := l.pos
	for end := start + 1; end < len(l.input); end++ {
		if l.input[end] == '\'' {
			l.tokens = append(l.tokens, Token{Kind: String, Text: l.input[start+1 : end], Pos: start})
			l.pos = end + 1
			return nil
		}
	}
	return &ruleErrors.LexError{Position: start, Char: '\'', Message: "unterminated string literal"}
}

// lexComparison consumes the longest comparison operator at the current position.
func (l *lexer) lexComparison() bool {
	rest := l.input[l.pos:]
	for _, op := range comparisonOperators {
		if len(rest) >= len(op) && rest[:len(op)] == op {
			l.emit(Comparison, op, len(op))
			return true
		}
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
