package parser

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
	"mercator-hq/ruler/pkg/rules/lexer"
)

func num(attr string, op ast.Comparison, v float64) ast.Node {
	return ast.NewOperand(attr, op, ast.NumberLiteral(v))
}

func str(attr string, op ast.Comparison, v string) ast.Node {
	return ast.NewOperand(attr, op, ast.StringLiteral(v))
}

func and(l, r ast.Node) ast.Node { return ast.NewOperator(ast.And, l, r) }
func or(l, r ast.Node) ast.Node  { return ast.NewOperator(ast.Or, l, r) }

func TestParseString(t *testing.T) {
	a := num("a", ast.OpEqual, 1)
	b := num("b", ast.OpEqual, 2)
	c := num("c", ast.OpEqual, 3)

	tests := []struct {
		name  string
		input string
		want  ast.Node
	}{
		{
			name:  "single comparison",
			input: "age > 30",
			want:  num("age", ast.OpGreaterThan, 30),
		},
		{
			name:  "string literal",
			input: "department = 'Sales'",
			want:  str("department", ast.OpEqual, "Sales"),
		},
		{
			name:  "negative decimal",
			input: "balance <= -12.5",
			want:  num("balance", ast.OpLessEqual, -12.5),
		},
		{
			name:  "boolean literal",
			input: "active != false",
			want:  ast.NewOperand("active", ast.OpNotEqual, ast.BoolLiteral(false)),
		},
		{
			name:  "AND binds tighter than OR",
			input: "a = 1 OR b = 2 AND c = 3",
			want:  or(a, and(b, c)),
		},
		{
			name:  "AND before OR",
			input: "a = 1 AND b = 2 OR c = 3",
			want:  or(and(a, b), c),
		},
		{
			name:  "parentheses override precedence",
			input: "(a = 1 OR b = 2) AND c = 3",
			want:  and(or(a, b), c),
		},
		{
			name:  "AND is left associative",
			input: "a = 1 AND b = 2 AND c = 3",
			want:  and(and(a, b), c),
		},
		{
			name:  "OR is left associative",
			input: "a = 1 OR b = 2 OR c = 3",
			want:  or(or(a, b), c),
		},
		{
			name:  "redundant parentheses",
			input: "((a = 1))",
			want:  a,
		},
		{
			name:  "sample rule",
			input: "((age > 30 AND department = 'Sales') OR (age < 25 AND department = 'Marketing')) AND (salary > 50000 OR experience > 5)",
			want: and(
				or(
					and(num("age", ast.OpGreaterThan, 30), str("department", ast.OpEqual, "Sales")),
					and(num("age", ast.OpLessThan, 25), str("department", ast.OpEqual, "Marketing")),
				),
				or(num("salary", ast.OpGreaterThan, 50000), num("experience", ast.OpGreaterThan, 5)),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseString(tt.input)
			if err != nil {
				t.Fatalf("ParseString(%q) error = %v", tt.input, err)
			}
			if !ast.Equal(got, tt.want) {
				t.Errorf("ParseString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseString_Errors(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantPosition int
		wantFound    string
	}{
		{"empty input", "", 0, "end of input"},
		{"whitespace only", "   ", 3, "end of input"},
		{"unbalanced open paren", "(a > 1", 6, "end of input"},
		{"unbalanced close paren", "a > 1)", 5, "')'"},
		{"missing literal", "age >", 5, "end of input"},
		{"missing operator", "age 30", 4, "number 30"},
		{"dangling AND", "a > 1 AND", 9, "end of input"},
		{"leading OR", "OR a > 1", 0, "'OR'"},
		{"double operator", "a >> 1", 3, "'>'"},
		{"double equals", "a == 1", 3, "'='"},
		{"bare identifier literal", "age > thirty", 6, "identifier thirty"},
		{"literal on the left", "30 < age", 0, "number 30"},
		{"adjacent comparisons", "a > 1 b > 2", 6, "identifier b"},
		{"empty parentheses", "()", 1, "')'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := ParseString(tt.input)
			if node != nil {
				t.Errorf("ParseString(%q) returned partial tree %s", tt.input, node)
			}
			var pe *ruleErrors.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ParseString(%q) error = %v, want ParseError", tt.input, err)
			}
			if pe.Position != tt.wantPosition {
				t.Errorf("Position = %d, want %d", pe.Position, tt.wantPosition)
			}
			if pe.Found != tt.wantFound {
				t.Errorf("Found = %q, want %q", pe.Found, tt.wantFound)
			}
			if pe.Expected == "" {
				t.Error("Expected should describe what the grammar required")
			}
		})
	}
}

func TestParseString_LexErrorPassesThrough(t *testing.T) {
	_, err := ParseString("age > 30 & active = true")
	var le *ruleErrors.LexError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want LexError", err)
	}
	if le.Position != 9 {
		t.Errorf("Position = %d, want 9", le.Position)
	}
}

func TestParser_MaxDepth(t *testing.T) {
	nested := func(depth int) string {
		return strings.Repeat("(", depth) + "a = 1" + strings.Repeat(")", depth)
	}

	p := NewParser().WithMaxDepth(5)
	if _, err := p.ParseString(nested(5)); err != nil {
		t.Fatalf("depth 5 should parse, got %v", err)
	}

	_, err := p.ParseString(nested(6))
	var pe *ruleErrors.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("depth 6 error = %v, want ParseError", err)
	}
	if pe.Position != 5 {
		t.Errorf("Position = %d, want 5", pe.Position)
	}

	// Sequential groups do not accumulate depth.
	flat := strings.Repeat("(a = 1) AND ", 50) + "(a = 1)"
	if _, err := p.ParseString(flat); err != nil {
		t.Errorf("sibling groups should parse, got %v", err)
	}
}

func TestParser_DefaultMaxDepth(t *testing.T) {
	if got := NewParser().MaxDepth(); got != DefaultMaxDepth {
		t.Errorf("MaxDepth() = %d, want %d", got, DefaultMaxDepth)
	}
	if got := NewParser().WithMaxDepth(0).MaxDepth(); got != DefaultMaxDepth {
		t.Errorf("WithMaxDepth(0).MaxDepth() = %d, want %d", got, DefaultMaxDepth)
	}

	deep := strings.Repeat("(", 10000) + "a = 1" + strings.Repeat(")", 10000)
	_, err := ParseString(deep)
	if kind, _ := ruleErrors.KindOf(err); kind != ruleErrors.KindParse {
		t.Fatalf("deeply nested input error = %v, want parse error", err)
	}
}

func TestParse_Tokens(t *testing.T) {
	tokens, err := lexer.Tokenize("name = 'x'")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	node, err := Parse(tokens)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !ast.Equal(node, str("name", ast.OpEqual, "x")) {
		t.Errorf("Parse() = %s", node)
	}

	// End of input is reported just past the last token.
	_, err = Parse(tokens[:2])
	var pe *ruleErrors.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if pe.Position != 6 {
		t.Errorf("Position = %d, want 6", pe.Position)
	}
}

func TestParseString_Deterministic(t *testing.T) {
	input := "(a = 1 OR b = 'two') AND c >= 3.5"
	first, err := ParseString(input)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ParseString(input)
		if err != nil {
			t.Fatalf("ParseString() error = %v", err)
		}
		if !ast.Equal(first, again) {
			t.Fatalf("parse %d differs: %s vs %s", i, again, first)
		}
	}
}

func BenchmarkParseString(b *testing.B) {
	input := "((age > 30 AND department = 'Sales') OR (age < 25 AND department = 'Marketing')) AND (salary > 50000 OR experience > 5)"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseString(input); err != nil {
			b.Fatal(err)
		}
	}
}

func TestParser_MaxTreeDepth(t *testing.T) {
	if got := NewParser().MaxTreeDepth(); got != ast.DefaultMaxDepth {
		t.Errorf("MaxTreeDepth() = %d, want %d", got, ast.DefaultMaxDepth)
	}

	p := NewParser().WithMaxTreeDepth(3)
	tests := []struct {
		input   string
		wantErr bool
		wantPos int
	}{
		{input: "a = 1 AND b = 2 AND c = 3"},
		{input: "a = 1 OR (b = 2 AND c = 3)"},
		{input: "a = 1 AND b = 2 AND c = 3 AND d = 4", wantErr: true, wantPos: 26},
		{input: "a = 1 OR (b = 2 AND (c = 3 OR d = 4))", wantErr: true, wantPos: 6},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := p.ParseString(tt.input)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ParseString() error = %v", err)
				}
				return
			}
			var perr *ruleErrors.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("ParseString() error = %v, want ParseError", err)
			}
			if perr.Position != tt.wantPos {
				t.Errorf("Position = %d, want %d", perr.Position, tt.wantPos)
			}
		})
	}
}
