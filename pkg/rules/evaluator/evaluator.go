package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

// Record is the attribute map a rule is evaluated against.
type Record = map[string]interface{}

// Redactor masks record values before they are written to debug logs.
type Redactor interface {
	RedactValue(attribute string, value interface{}) interface{}
}

// Evaluator walks rule trees against records.
type Evaluator struct {
	logger   *slog.Logger
	redactor Redactor
}

// NewEvaluator creates an evaluator. A nil logger falls back to slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger: logger.With("component", "rules.evaluator"),
	}
}

// WithRedactor sets the redactor applied to record values in debug logs.
func (e *Evaluator) WithRedactor(r Redactor) *Evaluator {
	e.redactor = r
	return e
}

// Evaluate reports whether record satisfies node.
func (e *Evaluator) Evaluate(node ast.Node, record Record) (bool, error) {
	if node == nil {
		return false, &ruleErrors.MalformedAstError{Message: "cannot evaluate an empty rule"}
	}

	switch n := node.(type) {
	case *ast.Operand:
		if n == nil {
			return false, &ruleErrors.MalformedAstError{Message: "nil operand"}
		}
		return e.evaluateOperand(n, record)

	case *ast.Operator:
		if n == nil {
			return false, &ruleErrors.MalformedAstError{Message: "nil operator"}
		}
		return e.evaluateOperator(n, record)

	default:
		return false, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("unknown node type %T", node)}
	}
}

// evaluateOperator evaluates both children unconditionally.
func (e *Evaluator) evaluateOperator(n *ast.Operator, record Record) (bool, error) {
	left, leftErr := e.Evaluate(n.Left, record)
	right, rightErr := e.Evaluate(n.Right, record)

	if leftErr != nil {
		if rightErr != nil {
			e.logger.Debug("both operands failed, reporting left",
				"connective", n.Connective,
				"left_error", leftErr,
				"right_error", rightErr,
			)
		}
		return false, leftErr
	}
	if rightErr != nil {
		return false, rightErr
	}

	switch n.Connective {
	case ast.And:
		return left && right, nil
	case ast.Or:
		return left || right, nil
	default:
		return false, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("unknown connective %q", n.Connective)}
	}
}

func (e *Evaluator) evaluateOperand(n *ast.Operand, record Record) (bool, error) {
	actual, ok := record[n.Attribute]
	if !ok {
		return false, &ruleErrors.EvaluationError{
			Attribute:  n.Attribute,
			Suggestion: ruleErrors.SuggestAttribute(n.Attribute, keys(record)),
		}
	}

	matched, err := compare(n, actual)
	if err != nil {
		return false, err
	}

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		shown := actual
		if e.redactor != nil {
			shown = e.redactor.RedactValue(n.Attribute, actual)
		}
		e.logger.Debug("operand evaluated",
			"attribute", n.Attribute,
			"operator", n.Operator,
			"expected", n.Value.String(),
			"actual", shown,
			"matched", matched,
		)
	}

	return matched, nil
}

// compare applies the operand's comparison to the record value.
func compare(n *ast.Operand, actual interface{}) (bool, error) {
	mismatch := func(expected string) error {
		return &ruleErrors.TypeMismatchError{
			Attribute: n.Attribute,
			Operator:  string(n.Operator),
			Expected:  expected,
			Actual:    TypeName(actual),
		}
	}

	switch n.Value.Kind {
	case ast.LiteralNumber:
		v, ok := ast.NumericValue(actual)
		if !ok {
			return false, mismatch(string(ast.LiteralNumber))
		}
		return compareNumbers(n.Operator, v, n.Value.Num)

	case ast.LiteralString:
		v, ok := actual.(string)
		if !ok {
			return false, mismatch(string(ast.LiteralString))
		}
		return compareStrings(n.Operator, v, n.Value.Str)

	case ast.LiteralBoolean:
		if n.Operator.IsOrdering() {
			return false, mismatch("number or string")
		}
		v, ok := actual.(bool)
		if !ok {
			return false, mismatch(string(ast.LiteralBoolean))
		}
		if n.Operator == ast.OpEqual {
			return v == n.Value.Bool, nil
		}
		return v != n.Value.Bool, nil

	default:
		return false, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("unknown literal kind %q", n.Value.Kind)}
	}
}

func compareNumbers(op ast.Comparison, a, b float64) (bool, error) {
	switch op {
	case ast.OpEqual:
		return a == b, nil
	case ast.OpNotEqual:
		return a != b, nil
	case ast.OpLessThan:
		return a < b, nil
	case ast.OpGreaterThan:
		return a > b, nil
	case ast.OpLessEqual:
		return a <= b, nil
	case ast.OpGreaterEqual:
		return a >= b, nil
	default:
		return false, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("unsupported comparison operator %q", op)}
	}
}

func compareStrings(op ast.Comparison, a, b string) (bool, error) {
	switch op {
	case ast.OpEqual:
		return a == b, nil
	case ast.OpNotEqual:
		return a != b, nil
	case ast.OpLessThan:
		return a < b, nil
	case ast.OpGreaterThan:
		return a > b, nil
	case ast.OpLessEqual:
		return a <= b, nil
	case ast.OpGreaterEqual:
		return a >= b, nil
	default:
		return false, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("unsupported comparison operator %q", op)}
	}
}

// TypeName names the rule-language type of a record value, e.g. "number".
func TypeName(v interface{}) string {
	if v == nil {
		return "null"
	}
	if _, ok := ast.NumericValue(v); ok {
		return string(ast.LiteralNumber)
	}

	switch v.(type) {
	case string:
		return string(ast.LiteralString)
	case bool:
		return string(ast.LiteralBoolean)
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func keys(record Record) []string {
	out := make([]string, 0, len(record))
	for k := range record {
		out = append(out, k)
	}
	return out
}

// Evaluate evaluates node against record with a default evaluator.
func Evaluate(node ast.Node, record Record) (bool, error) {
	return NewEvaluator(nil).Evaluate(node, record)
}
