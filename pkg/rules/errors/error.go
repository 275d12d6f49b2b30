package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a rule engine failure.
type Kind string

const (
	KindLex          Kind = "lex"           // Tokenizer failure
	KindParse        Kind = "parse"         // Grammar violation
	KindMalformedAST Kind = "malformed_ast" // Invalid canonical record
	KindEvaluation   Kind = "evaluation"    // Attribute missing from record
	KindTypeMismatch Kind = "type_mismatch" // Operator not applicable to value types
)

// RuleError is implemented by every error the rule engine reports.
type RuleError interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the first RuleError in err's chain.
func KindOf(err error) (Kind, bool) {
	var re RuleError
	if stderrors.As(err, &re) {
		return re.Kind(), true
	}
	return "", false
}

// IsRuleError reports whether err (or anything it wraps) is a RuleError.
func IsRuleError(err error) bool {
	_, ok := KindOf(err)
	return ok
}

// LexError indicates the tokenizer met input it cannot classify.
type LexError struct {
	Position int    // Byte offset in the rule string
	Char     rune   // Offending character
	Message  string // Optional detail (e.g. unterminated string)
}

// Error returns the error message.
func (e *LexError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("lex error at position %d: %s", e.Position, e.Message)
	}
	return fmt.Sprintf("lex error at position %d: unexpected character %q", e.Position, e.Char)
}

// Kind implements RuleError.
func (e *LexError) Kind() Kind { return KindLex }

// ParseError indicates the token sequence does not match the rule grammar.
type ParseError struct {
	Expected string // What the grammar required
	Found    string // What was actually there
	Position int    // Byte offset of the offending token
}

// Error returns the error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: expected %s, found %s", e.Position, e.Expected, e.Found)
}

// Kind implements RuleError.
func (e *ParseError) Kind() Kind { return KindParse }

// MalformedAstError indicates a canonical record cannot be turned back into a tree.
type MalformedAstError struct {
	Path    string // Location in the record, e.g. "root.left.right"
	Message string
}

// Error returns the error message.
func (e *MalformedAstError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed AST: %s", e.Message)
	}
	return fmt.Sprintf("malformed AST at %s: %s", e.Path, e.Message)
}

// Kind implements RuleError.
func (e *MalformedAstError) Kind() Kind { return KindMalformedAST }

// EvaluationError indicates a rule references an attribute the record lacks.
type EvaluationError struct {
	Attribute  string
	Suggestion string // Optional hint, e.g. "Did you mean 'age'?"
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("attribute %q not found in record (%s)", e.Attribute, e.Suggestion)
	}
	return fmt.Sprintf("attribute %q not found in record", e.Attribute)
}

// Kind implements RuleError.
func (e *EvaluationError) Kind() Kind { return KindEvaluation }

// TypeMismatchError indicates the record value cannot be compared against the
// literal with the requested operator.
type TypeMismatchError struct {
	Attribute string
	Operator  string
	Expected  string
	Actual    string
}

// Error returns the error message.
func (e *TypeMismatchError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("type mismatch for attribute %q with operator %s: expected %s, got %s",
			e.Attribute, e.Operator, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type mismatch for attribute %q: expected %s, got %s", e.Attribute, e.Expected, e.Actual)
}

// Kind implements RuleError.
func (e *TypeMismatchError) Kind() Kind { return KindTypeMismatch }
