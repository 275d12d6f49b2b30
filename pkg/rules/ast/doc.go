// Package ast defines the abstract syntax tree of a rule expression.
//
// A rule such as
//
//	age > 30 AND department = 'Sales'
//
// is represented as a strict binary tree whose leaves are comparisons
// (Operand) and whose internal nodes are logical connectives (Operator):
//
//	Operator(AND)
//	├── Operand(age > 30)
//	└── Operand(department = 'Sales')
//
// # Closed variant set
//
// Node is a sealed interface: only *Operand and *Operator implement it.
// Traversals switch on the concrete type and treat anything else as an error,
// so a new traversal has to handle both variants.
//
// # Immutability
//
// Trees are never mutated after construction. Combine wraps existing roots in
// new Operator nodes and shares the subtrees, which is safe because nothing
// writes to them. A tree may be evaluated from many goroutines at once.
//
// # Canonical record
//
// Serialize and Deserialize convert between a tree and its persisted form:
//
//	{
//	  "node_type": "operator",
//	  "value": "AND",
//	  "left":  {"node_type": "operand", "value": ["age", ">", 30], "left": null, "right": null},
//	  "right": {"node_type": "operand", "value": ["department", "=", "Sales"], "left": null, "right": null}
//	}
//
// Deserialize(Serialize(t)) is structurally equal to t for every tree.
package ast
