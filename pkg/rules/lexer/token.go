// Package lexer converts a rule string into a flat sequence of typed tokens.
//
// The lexer knows nothing about the tree being built from its output; it only
// classifies characters:
//
//	age >= 30 AND department = 'Sales'
//
//	Identifier(age) Comparison(>=) Number(30) Logical(AND)
//	Identifier(department) Comparison(=) String(Sales)
//
// Tokenize is a pure function of its input, so it is safe for concurrent use
// and can be re-run at will.
package lexer

import (
	"fmt"
	"strconv"
)

// TokenKind identifies the class of a token.
type TokenKind int

const (
	Identifier TokenKind = iota // attribute name, or true/false in literal position
	Number                      // numeric literal, stored as float64
	String                      // single-quoted string literal
	Comparison                  // >, <, =, >=, <=, !=
	Logical                     // AND, OR
	LParen                      // (
	RParen                      // )
)

var kindNames = map[TokenKind]string{
	Identifier: "identifier",
	Number:     "number",
	String:     "string",
	Comparison: "comparison operator",
	Logical:    "logical operator",
	LParen:     "'('",
	RParen:     "')'",
}

// String returns a human-readable name of the token kind.
func (k TokenKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Logical operator keywords. Matching is case-sensitive.
const (
	KeywordAnd = "AND"
	KeywordOr  = "OR"
)

// Token is a single lexical element of a rule string. Tokens are values and
// are never modified after Tokenize returns them.
type Token struct {
	Kind TokenKind
	Text string  // Raw text; the name for identifiers, the unquoted value for strings
	Num  float64 // Parsed value for Number tokens
	Pos  int     // Byte offset of the first character in the input
}

// String describes the token for error messages, e.g. "identifier age".
func (t Token) String() string {
	switch t.Kind {
	case Identifier:
		return "identifier " + t.Text
	case Number:
		return "number " + strconv.FormatFloat(t.Num, 'f', -1, 64)
	case String:
		return "string '" + t.Text + "'"
	case Comparison, Logical:
		return "'" + t.Text + "'"
	default:
		return t.Kind.String()
	}
}
