package ast

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

func TestSerialize_Shape(t *testing.T) {
	data, err := EncodeJSON(NewOperator(And,
		NewOperand("age", OpGreaterThan, NumberLiteral(30)),
		NewOperand("department", OpEqual, StringLiteral("Sales")),
	))
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}

	want := `{"node_type":"operator","value":"AND",` +
		`"left":{"node_type":"operand","value":["age",">",30],"left":null,"right":null},` +
		`"right":{"node_type":"operand","value":["department","=","Sales"],"left":null,"right":null}}`
	if string(data) != want {
		t.Errorf("serialized JSON =\n%s\nwant\n%s", data, want)
	}
}

func TestSerialize_Nil(t *testing.T) {
	if rec := Serialize(nil); rec != nil {
		t.Errorf("Serialize(nil) = %+v, want nil", rec)
	}

	data, err := EncodeJSON(nil)
	if err != nil {
		t.Fatalf("EncodeJSON(nil) error = %v", err)
	}
	if string(data) != "null" {
		t.Errorf("EncodeJSON(nil) = %s, want null", data)
	}
}

func TestRoundTrip(t *testing.T) {
	trees := map[string]Node{
		"leaf":     NewOperand("age", OpGreaterEqual, NumberLiteral(18)),
		"negative": NewOperand("balance", OpLessThan, NumberLiteral(-0.5)),
		"boolean":  NewOperand("active", OpNotEqual, BoolLiteral(false)),
		"nested":   sampleTree(),
		"chain": Combine([]Node{
			NewOperand("a", OpEqual, NumberLiteral(1)),
			NewOperand("b", OpEqual, StringLiteral("two")),
			NewOperand("c", OpEqual, NumberLiteral(3)),
		}),
	}

	for name, tree := range trees {
		t.Run(name+"/record", func(t *testing.T) {
			got, err := Deserialize(Serialize(tree))
			if err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if !Equal(got, tree) {
				t.Errorf("round trip = %v, want %v", got, tree)
			}
		})

		t.Run(name+"/json", func(t *testing.T) {
			data, err := EncodeJSON(tree)
			if err != nil {
				t.Fatalf("EncodeJSON() error = %v", err)
			}
			got, err := DecodeJSON(data)
			if err != nil {
				t.Fatalf("DecodeJSON() error = %v", err)
			}
			if !Equal(got, tree) {
				t.Errorf("JSON round trip = %v, want %v", got, tree)
			}
		})

		t.Run(name+"/yaml", func(t *testing.T) {
			data, err := EncodeYAML(tree)
			if err != nil {
				t.Fatalf("EncodeYAML() error = %v", err)
			}
			got, err := DecodeYAML(data)
			if err != nil {
				t.Fatalf("DecodeYAML() error = %v", err)
			}
			if !Equal(got, tree) {
				t.Errorf("YAML round trip = %v, want %v\n%s", got, tree, data)
			}
		})
	}
}

func TestDeserialize_Malformed(t *testing.T) {
	leaf := &Record{NodeType: NodeTypeOperand, Value: []interface{}{"age", ">", 30}}

	tests := []struct {
		name     string
		rec      *Record
		wantPath string
		wantMsg  string
	}{
		{"nil record", nil, "root", "missing node"},
		{"unknown node type", &Record{NodeType: "branch", Value: "AND"}, "root", "unrecognized node_type"},
		{"operator missing right", &Record{NodeType: NodeTypeOperator, Value: "AND", Left: leaf}, "root", "both children"},
		{"operator bad connective", &Record{NodeType: NodeTypeOperator, Value: "XOR", Left: leaf, Right: leaf}, "root", "AND"},
		{"operator lowercase connective", &Record{NodeType: NodeTypeOperator, Value: "and", Left: leaf, Right: leaf}, "root", "AND"},
		{"operand with child", &Record{NodeType: NodeTypeOperand, Value: []interface{}{"age", ">", 30}, Left: leaf}, "root", "must not have children"},
		{"operand 2-tuple", &Record{NodeType: NodeTypeOperand, Value: []interface{}{"age", ">"}}, "root", "3-element"},
		{"operand not a list", &Record{NodeType: NodeTypeOperand, Value: "age > 30"}, "root", "3-element"},
		{"operand empty attribute", &Record{NodeType: NodeTypeOperand, Value: []interface{}{"", ">", 30}}, "root", "non-empty string"},
		{"operand bad operator", &Record{NodeType: NodeTypeOperand, Value: []interface{}{"age", "==", 30}}, "root", "unsupported comparison"},
		{"operand null literal", &Record{NodeType: NodeTypeOperand, Value: []interface{}{"age", "=", nil}}, "root", "number, string or boolean"},
		{
			name:     "nested error path",
			rec:      &Record{NodeType: NodeTypeOperator, Value: "OR", Left: leaf, Right: &Record{NodeType: "bogus"}},
			wantPath: "root.right",
			wantMsg:  "unrecognized node_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.rec)
			var malformed *ruleErrors.MalformedAstError
			if !errors.As(err, &malformed) {
				t.Fatalf("Deserialize() error = %v, want MalformedAstError", err)
			}
			if malformed.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", malformed.Path, tt.wantPath)
			}
			if !strings.Contains(malformed.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", malformed.Message, tt.wantMsg)
			}
		})
	}
}

func TestDeserialize_AcceptsTypedSlices(t *testing.T) {
	rec := &Record{NodeType: NodeTypeOperand, Value: []string{"department", "=", "Sales"}}
	got, err := Deserialize(rec)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	want := NewOperand("department", OpEqual, StringLiteral("Sales"))
	if !Equal(got, want) {
		t.Errorf("Deserialize() = %v, want %v", got, want)
	}
}

func TestDeserialize_MaxDepth(t *testing.T) {
	leaf := &Record{NodeType: NodeTypeOperand, Value: []interface{}{"a", "=", 1}}
	rec := leaf
	for i := 0; i < 5; i++ {
		rec = &Record{NodeType: NodeTypeOperator, Value: "AND", Left: rec, Right: leaf}
	}

	if _, err := DeserializeWithMaxDepth(rec, 6); err != nil {
		t.Fatalf("depth 6 tree with limit 6: unexpected error %v", err)
	}

	_, err := DeserializeWithMaxDepth(rec, 5)
	var malformed *ruleErrors.MalformedAstError
	if !errors.As(err, &malformed) {
		t.Fatalf("depth 6 tree with limit 5: error = %v, want MalformedAstError", err)
	}
}

func TestDecodeJSON_Invalid(t *testing.T) {
	tests := []string{
		`null`,
		`{"node_type": "operand", "value": ["age", ">"]}`,
		`{not json`,
	}

	for _, input := range tests {
		_, err := DecodeJSON([]byte(input))
		if kind, ok := ruleErrors.KindOf(err); !ok || kind != ruleErrors.KindMalformedAST {
			t.Errorf("DecodeJSON(%s) error = %v, want malformed_ast", input, err)
		}
	}
}

func TestDecodeJSON_IntegerLiteral(t *testing.T) {
	got, err := DecodeJSON([]byte(`{"node_type":"operand","value":["salary",">",50000],"left":null,"right":null}`))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	want := NewOperand("salary", OpGreaterThan, NumberLiteral(50000))
	if !Equal(got, want) {
		t.Errorf("DecodeJSON() = %v, want %v", got, want)
	}
}

// chainRecord builds the record of a left-leaning AND chain of the given depth.
func chainRecord(depth int) *Record {
	rec := Serialize(NewOperand("a", OpEqual, NumberLiteral(1)))
	for i := 1; i < depth; i++ {
		rec = &Record{
			NodeType: NodeTypeOperator,
			Value:    "AND",
			Left:     rec,
			Right:    Serialize(NewOperand("a", OpEqual, NumberLiteral(1))),
		}
	}
	return rec
}

func TestDeserialize_DeepChainAllocatesLinearly(t *testing.T) {
	const depth = 8000
	rec := chainRecord(depth)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	node, err := Deserialize(rec)
	runtime.ReadMemStats(&after)

	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if got := Depth(node); got != depth {
		t.Fatalf("Depth() = %d, want %d", got, depth)
	}
	if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 16<<20 {
		t.Errorf("decoding a %d-level chain allocated %d bytes, want under 16MB", depth, allocated)
	}
}

func TestDeserialize_DeepErrorPath(t *testing.T) {
	rec := chainRecord(3)
	rec.Left.Left.Value = []interface{}{"a", "~", 1}

	_, err := Deserialize(rec)
	var malformed *ruleErrors.MalformedAstError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedAstError", err)
	}
	if malformed.Path != "root.left.left" {
		t.Errorf("Path = %q, want root.left.left", malformed.Path)
	}
}

func BenchmarkDeserialize_DeepChain(b *testing.B) {
	rec := chainRecord(DefaultMaxDepth)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Deserialize(rec); err != nil {
			b.Fatal(err)
		}
	}
}
