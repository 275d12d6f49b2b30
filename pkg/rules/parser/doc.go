// Package parser builds rule trees from rule strings.
//
// The parser is a recursive-descent parser over the token stream produced by
// the lexer package. AND binds tighter than OR and both associate left:
//
//	expr       := or_expr
//	or_expr    := and_expr (OR and_expr)*
//	and_expr   := primary (AND primary)*
//	primary    := '(' expr ')' | comparison
//	comparison := Identifier ComparisonOp Literal
//
// A literal is a number, a single-quoted string, or one of the identifiers
// true and false.
//
// Basic usage:
//
//	node, err := parser.ParseString("age > 30 AND department = 'Sales'")
//	if err != nil {
//	    var pe *errors.ParseError
//	    if errors.As(err, &pe) {
//	        fmt.Printf("expected %s at %d\n", pe.Expected, pe.Position)
//	    }
//	}
//
// Parenthesis nesting is bounded by DefaultMaxDepth unless a different limit
// is set with WithMaxDepth. Exceeding the limit is a ParseError, so deeply
// nested input fails the same way on every platform.
//
// A Parser holds configuration only; every call keeps its own state, so a
// single Parser may be shared between goroutines once configured.
package parser
