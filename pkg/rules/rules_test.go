package rules

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

func TestCreateRule_Precedence(t *testing.T) {
	node, err := CreateRule("a = 1 OR b = 2 AND c = 3")
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if got, want := node.String(), "(a = 1 OR (b = 2 AND c = 3))"; got != want {
		t.Errorf("tree = %s, want %s", got, want)
	}
}

func TestCombineRules_MatchesChainedAnd(t *testing.T) {
	combined, err := CombineRules([]string{"a = 1", "b = 2", "c = 3"})
	if err != nil {
		t.Fatalf("CombineRules() error = %v", err)
	}

	chained, err := CreateRule("a = 1 AND b = 2 AND c = 3")
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	if !ast.Equal(combined, chained) {
		t.Errorf("combined %s != chained %s", combined, chained)
	}
}

func TestCombineRules_EmptyAndSingle(t *testing.T) {
	empty, err := CombineRules(nil)
	if err != nil {
		t.Fatalf("CombineRules(nil) error = %v", err)
	}
	if empty != nil {
		t.Errorf("CombineRules(nil) = %s, want nil", empty)
	}
	if rec := SerializeAST(empty); rec != nil {
		t.Errorf("SerializeAST(nil) = %+v, want nil", rec)
	}

	single, err := CombineRules([]string{"age > 30"})
	if err != nil {
		t.Fatalf("CombineRules() error = %v", err)
	}
	if _, ok := single.(*ast.Operand); !ok {
		t.Errorf("single rule was wrapped: %s", single)
	}
}

func TestCombineRules_ReportsFailingRule(t *testing.T) {
	_, err := CombineRules([]string{"a = 1", "(b = 2"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "rule 1: ") {
		t.Errorf("error = %q, want index prefix", err)
	}
	var pe *ruleErrors.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want wrapped ParseError", err)
	}
}

func TestEndToEnd(t *testing.T) {
	rule := "((age > 30 AND department = 'Sales') OR (age < 25 AND department = 'Marketing')) AND (salary > 50000 OR experience > 5)"
	node, err := CreateRule(rule)
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	tests := []struct {
		name   string
		record map[string]interface{}
		want   bool
	}{
		{"senior sales high salary", map[string]interface{}{"age": 35, "department": "Sales", "salary": 60000, "experience": 3}, true},
		{"senior sales low salary", map[string]interface{}{"age": 35, "department": "Sales", "salary": 40000, "experience": 3}, false},
		{"junior marketing experienced", map[string]interface{}{"age": 22, "department": "Marketing", "salary": 20000, "experience": 6}, true},
		{"mid-age marketing", map[string]interface{}{"age": 28, "department": "Marketing", "salary": 90000, "experience": 9}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateRule(node, tt.record)
			if err != nil {
				t.Fatalf("EvaluateRule() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateRule() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRejection(t *testing.T) {
	if _, err := CreateRule("(a > 1"); !isKind(err, ruleErrors.KindParse) {
		t.Errorf("unbalanced parenthesis error = %v, want parse error", err)
	}

	_, err := CreateRule("a >> 1")
	if !isKind(err, ruleErrors.KindParse) && !isKind(err, ruleErrors.KindLex) {
		t.Errorf("doubled operator error = %v, want lex or parse error", err)
	}

	node, err := CreateRule("age > 30")
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	_, err = EvaluateRule(node, map[string]interface{}{"age": "thirty"})
	if !isKind(err, ruleErrors.KindTypeMismatch) {
		t.Errorf("string age error = %v, want type mismatch", err)
	}
}

func TestSerializeRoundTrip_ParsedTrees(t *testing.T) {
	inputs := []string{
		"age > 30",
		"name = ''",
		"active = true AND flagged != false",
		"balance >= -1.25 OR balance <= 1000000",
		"a = 1 OR b = 2 AND c = 3 OR d = 'x y'",
		"((a = 1 OR b = 2) AND (c = 3 OR (d = 4 AND e = 5)))",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			node, err := CreateRule(input)
			if err != nil {
				t.Fatalf("CreateRule() error = %v", err)
			}

			back, err := DeserializeAST(SerializeAST(node))
			if err != nil {
				t.Fatalf("DeserializeAST() error = %v", err)
			}
			if !ast.Equal(node, back) {
				t.Errorf("record round trip: %s != %s", back, node)
			}

			data, err := ast.EncodeJSON(node)
			if err != nil {
				t.Fatalf("EncodeJSON() error = %v", err)
			}
			fromJSON, err := ast.DecodeJSON(data)
			if err != nil {
				t.Fatalf("DecodeJSON() error = %v", err)
			}
			if !ast.Equal(node, fromJSON) {
				t.Errorf("JSON round trip: %s != %s", fromJSON, node)
			}
		})
	}
}

func TestEngine_Limits(t *testing.T) {
	e := NewEngine(nil).WithMaxDepth(2).WithMaxASTDepth(2)

	if _, err := e.CreateRule("((a = 1))"); err != nil {
		t.Errorf("depth 2 rule error = %v", err)
	}
	if _, err := e.CreateRule("(((a = 1)))"); !isKind(err, ruleErrors.KindParse) {
		t.Errorf("depth 3 rule error = %v, want parse error", err)
	}

	deep, err := CreateRule("a = 1 AND b = 2 AND c = 3")
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if _, err := e.DeserializeAST(SerializeAST(deep)); !isKind(err, ruleErrors.KindMalformedAST) {
		t.Errorf("deep record error = %v, want malformed AST error", err)
	}
}

func TestEngine_EvaluateRecord(t *testing.T) {
	e := NewEngine(nil)
	rec := SerializeAST(ast.NewOperand("age", ast.OpGreaterThan, ast.NumberLiteral(30)))

	ok, err := e.EvaluateRecord(rec, map[string]interface{}{"age": 31})
	if err != nil {
		t.Fatalf("EvaluateRecord() error = %v", err)
	}
	if !ok {
		t.Error("EvaluateRecord() = false, want true")
	}

	_, err = e.EvaluateRecord(&ast.Record{NodeType: "leaf"}, nil)
	if !isKind(err, ruleErrors.KindMalformedAST) {
		t.Errorf("bad record error = %v, want malformed AST error", err)
	}
}

func isKind(err error, want ruleErrors.Kind) bool {
	kind, ok := ruleErrors.KindOf(err)
	return ok && kind == want
}

// chain returns a flat AND chain of n comparisons, which parses to a
// left-leaning tree of depth n.
func chain(n int) string {
	return strings.Repeat("a = 1 AND ", n-1) + "a = 1"
}

func TestCreateRule_LongChainRoundTrips(t *testing.T) {
	node, err := CreateRule(chain(ast.DefaultMaxDepth))
	if err != nil {
		t.Fatalf("chain at the depth limit: CreateRule() error = %v", err)
	}
	if got := ast.Depth(node); got != ast.DefaultMaxDepth {
		t.Fatalf("Depth() = %d, want %d", got, ast.DefaultMaxDepth)
	}

	decoded, err := DeserializeAST(SerializeAST(node))
	if err != nil {
		t.Fatalf("DeserializeAST() error = %v", err)
	}
	if !ast.Equal(node, decoded) {
		t.Error("record round trip changed the tree")
	}

	data, err := ast.EncodeJSON(node)
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	fromJSON, err := ast.DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if !ast.Equal(node, fromJSON) {
		t.Error("JSON round trip changed the tree")
	}

	_, err = CreateRule(chain(ast.DefaultMaxDepth + 1))
	if !isKind(err, ruleErrors.KindParse) {
		t.Errorf("chain beyond the depth limit: error = %v, want parse error", err)
	}
}

func TestEngine_TreeDepthLimit(t *testing.T) {
	e := NewEngine(nil).WithMaxASTDepth(3)

	if _, err := e.CreateRule("a = 1 OR b = 2 AND c = 3"); err != nil {
		t.Errorf("depth 3 rule error = %v", err)
	}
	if _, err := e.CreateRule("a = 1 AND b = 2 AND c = 3 AND d = 4"); !isKind(err, ruleErrors.KindParse) {
		t.Errorf("depth 4 rule error = %v, want parse error", err)
	}

	if _, err := e.CombineRules([]string{"a = 1", "b = 2", "c = 3"}); err != nil {
		t.Errorf("combining to depth 3 error = %v", err)
	}
	_, err := e.CombineRules([]string{"a = 1", "b = 2", "c = 3", "d = 4"})
	if !isKind(err, ruleErrors.KindMalformedAST) {
		t.Errorf("combining to depth 4 error = %v, want malformed AST error", err)
	}
}
