package ast

// Combine folds trees left to right with AND:
//
//	Combine([t0, t1, t2]) == AND(AND(t0, t1), t2)
//
// An empty input yields nil, meaning "no rule". A single tree is returned
// as-is without wrapping. Input trees are shared, never copied or modified.
// Nil entries are skipped.
func Combine(nodes []Node) Node {
	var result Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if result == nil {
			result = n
			continue
		}
		result = NewOperator(And, result, n)
	}
	return result
}
