package ast

import (
	"strconv"
)

// LiteralKind is the type of a literal value in a comparison.
// There is no automatic coercion between kinds.
type LiteralKind string

const (
	LiteralNumber  LiteralKind = "number"
	LiteralString  LiteralKind = "string"
	LiteralBoolean LiteralKind = "boolean"
)

// Literal is the right-hand side of a comparison.
// Exactly one of Num, Str or Bool is meaningful, selected by Kind.
type Literal struct {
	Kind LiteralKind
	Num  float64
	Str  string
	Bool bool
}

// NumberLiteral returns a numeric literal.
func NumberLiteral(v float64) Literal {
	return Literal{Kind: LiteralNumber, Num: v}
}

// StringLiteral returns a string literal.
func StringLiteral(v string) Literal {
	return Literal{Kind: LiteralString, Str: v}
}

// BoolLiteral returns a boolean literal.
func BoolLiteral(v bool) Literal {
	return Literal{Kind: LiteralBoolean, Bool: v}
}

// Value returns the literal as a plain Go value (float64, string or bool).
func (l Literal) Value() interface{} {
	switch l.Kind {
	case LiteralNumber:
		return l.Num
	case LiteralString:
		return l.Str
	case LiteralBoolean:
		return l.Bool
	default:
		return nil
	}
}

// Equal reports whether two literals have the same kind and value.
func (l Literal) Equal(other Literal) bool {
	if l.Kind != other.Kind {
		return false
	}
	switch l.Kind {
	case LiteralNumber:
		return l.Num == other.Num
	case LiteralString:
		return l.Str == other.Str
	case LiteralBoolean:
		return l.Bool == other.Bool
	default:
		return true
	}
}

// String renders the literal the way it is written in a rule string.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralNumber:
		return strconv.FormatFloat(l.Num, 'f', -1, 64)
	case LiteralString:
		return "'" + l.Str + "'"
	case LiteralBoolean:
		return strconv.FormatBool(l.Bool)
	default:
		return "<invalid>"
	}
}
