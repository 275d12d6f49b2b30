package ast

import "fmt"

// Visitor is called for every node during Walk.
type Visitor interface {
	Visit(Node) error
}

// VisitorFunc adapts an ordinary function to the Visitor interface.
type VisitorFunc func(Node) error

// Visit calls f(n).
func (f VisitorFunc) Visit(n Node) error {
	return f(n)
}

// Walk traverses the tree in pre-order (node, left, right) and returns the
// first error returned by the visitor.
func Walk(n Node, v Visitor) error {
	if n == nil {
		return nil
	}

	if err := v.Visit(n); err != nil {
		return err
	}

	switch x := n.(type) {
	case *Operand:
		return nil
	case *Operator:
		if err := Walk(x.Left, v); err != nil {
			return err
		}
		return Walk(x.Right, v)
	default:
		return fmt.Errorf("unknown node type %T", n)
	}
}
