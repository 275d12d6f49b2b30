// Package errors defines the failure taxonomy of the rule engine.
//
// Every failure the core reports is one of five typed errors:
//
//	LexError          unrecognized character or unterminated string while tokenizing
//	ParseError        grammar violation, unbalanced parentheses, excess nesting
//	MalformedAstError structurally invalid serialized tree
//	EvaluationError   attribute referenced by a rule is missing from the record
//	TypeMismatchError comparison not applicable to the record value and literal types
//
// All five implement RuleError, so callers can classify a failure without
// knowing the concrete type:
//
//	if kind, ok := errors.KindOf(err); ok {
//	    switch kind {
//	    case errors.KindLex, errors.KindParse:
//	        // the rule string must be fixed
//	    case errors.KindEvaluation, errors.KindTypeMismatch:
//	        // the record does not fit the rule
//	    }
//	}
//
// The concrete types are matched with the standard library's errors.As.
//
// None of these errors are retried or recovered internally: parsing and
// evaluation are deterministic, so the input has to change before a retry
// can succeed.
package errors
