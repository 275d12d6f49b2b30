package ast

import "fmt"

// Connective is a logical operator joining two subtrees.
type Connective string

const (
	And Connective = "AND"
	Or  Connective = "OR"
)

// IsValid reports whether c is AND or OR.
func (c Connective) IsValid() bool {
	return c == And || c == Or
}

// Comparison is a comparison operator in an Operand.
type Comparison string

const (
	OpEqual        Comparison = "="
	OpNotEqual     Comparison = "!="
	OpLessThan     Comparison = "<"
	OpGreaterThan  Comparison = ">"
	OpLessEqual    Comparison = "<="
	OpGreaterEqual Comparison = ">="
)

// Comparisons lists every supported comparison operator.
var Comparisons = []Comparison{OpGreaterEqual, OpLessEqual, OpNotEqual, OpEqual, OpGreaterThan, OpLessThan}

// IsValid reports whether c is one of the supported comparison operators.
func (c Comparison) IsValid() bool {
	switch c {
	case OpEqual, OpNotEqual, OpLessThan, OpGreaterThan, OpLessEqual, OpGreaterEqual:
		return true
	}
	return false
}

// IsOrdering reports whether c requires an ordered pair of values (<, >, <=, >=).
func (c Comparison) IsOrdering() bool {
	switch c {
	case OpLessThan, OpGreaterThan, OpLessEqual, OpGreaterEqual:
		return true
	}
	return false
}

// Node is an element of a rule tree. It is implemented only by *Operand and *Operator.
type Node interface {
	fmt.Stringer
	node()
}

// Operand is a leaf comparing one record attribute against a literal.
type Operand struct {
	Attribute string
	Operator  Comparison
	Value     Literal
}

// Operator is an internal node joining exactly two subtrees.
type Operator struct {
	Connective Connective
	Left       Node
	Right      Node
}

func (*Operand) node()  {}
func (*Operator) node() {}

// NewOperand creates a comparison leaf.
func NewOperand(attribute string, op Comparison, value Literal) *Operand {
	return &Operand{Attribute: attribute, Operator: op, Value: value}
}

// NewOperator creates an internal node. Both children must be non-nil.
func NewOperator(c Connective, left, right Node) *Operator {
	return &Operator{Connective: c, Left: left, Right: right}
}

// String renders the comparison as rule text, e.g. "age > 30".
func (o *Operand) String() string {
	return fmt.Sprintf("%s %s %s", o.Attribute, o.Operator, o.Value)
}

// String renders the subtree fully parenthesized, e.g. "(a > 1 AND b = 'x')".
// The output parses back into the same tree as long as no string literal
// contains a single quote.
func (o *Operator) String() string {
	return fmt.Sprintf("(%s %s %s)", o.Left, o.Connective, o.Right)
}

// Equal reports whether two trees are structurally equal.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case *Operand:
		y, ok := b.(*Operand)
		return ok && x.Attribute == y.Attribute && x.Operator == y.Operator && x.Value.Equal(y.Value)
	case *Operator:
		y, ok := b.(*Operator)
		return ok && x.Connective == y.Connective && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	default:
		return false
	}
}

// Depth returns the number of levels in the tree (a single leaf has depth 1).
func Depth(n Node) int {
	switch x := n.(type) {
	case *Operand:
		return 1
	case *Operator:
		return 1 + max(Depth(x.Left), Depth(x.Right))
	default:
		return 0
	}
}

// Count returns the number of nodes in the tree.
func Count(n Node) int {
	switch x := n.(type) {
	case *Operand:
		return 1
	case *Operator:
		return 1 + Count(x.Left) + Count(x.Right)
	default:
		return 0
	}
}

// Attributes returns the distinct attribute names referenced by the tree,
// in order of first appearance (left to right).
func Attributes(n Node) []string {
	seen := make(map[string]bool)
	var attrs []string

	_ = Walk(n, VisitorFunc(func(node Node) error {
		if op, ok := node.(*Operand); ok && !seen[op.Attribute] {
			seen[op.Attribute] = true
			attrs = append(attrs, op.Attribute)
		}
		return nil
	}))

	return attrs
}
