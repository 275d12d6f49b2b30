package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

// NodeType is the discriminator of a canonical record.
type NodeType string

const (
	NodeTypeOperand  NodeType = "operand"
	NodeTypeOperator NodeType = "operator"
)

// DefaultMaxDepth bounds the depth of trees accepted by Deserialize and, by
// default, produced by the parser. It stays below the nesting limit of
// encoding/json (10000), which also counts the operand value list and any
// request object wrapping the record, so every tree within the bound
// survives a JSON round trip.
const DefaultMaxDepth = 9000

// Record is the canonical, persistable form of a tree node.
//
// For an operand, Value is the 3-tuple [attribute, operator, literal] and both
// children are nil. For an operator, Value is "AND" or "OR" and both children
// are present.
type Record struct {
	NodeType NodeType    `json:"node_type" yaml:"node_type"`
	Value    interface{} `json:"value" yaml:"value"`
	Left     *Record     `json:"left" yaml:"left"`
	Right    *Record     `json:"right" yaml:"right"`
}

// Serialize converts a tree into its canonical record. A nil tree (the empty
// result of Combine) serializes to nil.
func Serialize(n Node) *Record {
	switch x := n.(type) {
	case *Operand:
		return &Record{
			NodeType: NodeTypeOperand,
			Value:    []interface{}{x.Attribute, string(x.Operator), x.Value.Value()},
		}
	case *Operator:
		return &Record{
			NodeType: NodeTypeOperator,
			Value:    string(x.Connective),
			Left:     Serialize(x.Left),
			Right:    Serialize(x.Right),
		}
	default:
		return nil
	}
}

// Deserialize converts a canonical record back into a tree.
// It fails with a *errors.MalformedAstError when the record is nil, has an
// unknown node_type, an operator with a missing child, an operand with
// children, or an operand value that is not a well-formed 3-tuple.
func Deserialize(rec *Record) (Node, error) {
	return DeserializeWithMaxDepth(rec, DefaultMaxDepth)
}

// DeserializeWithMaxDepth is Deserialize with an explicit depth bound.
func DeserializeWithMaxDepth(rec *Record, maxDepth int) (Node, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	d := &decoder{maxDepth: maxDepth, path: []string{"root"}}
	return d.decode(rec)
}

// decoder walks a record keeping the path to the current node as segments.
// The dotted path string is only built for errors.
type decoder struct {
	maxDepth int
	path     []string
}

func (d *decoder) fail(format string, args ...interface{}) error {
	return &ruleErrors.MalformedAstError{
		Path:    strings.Join(d.path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}

func (d *decoder) child(rec *Record, side string) (Node, error) {
	d.path = append(d.path, side)
	n, err := d.decode(rec)
	d.path = d.path[:len(d.path)-1]
	return n, err
}

func (d *decoder) decode(rec *Record) (Node, error) {
	if rec == nil {
		return nil, d.fail("missing node")
	}
	if len(d.path) > d.maxDepth {
		return nil, d.fail("tree exceeds maximum depth of %d", d.maxDepth)
	}

	switch rec.NodeType {
	case NodeTypeOperand:
		if rec.Left != nil || rec.Right != nil {
			return nil, d.fail("operand node must not have children")
		}
		return d.decodeOperand(rec.Value)

	case NodeTypeOperator:
		connective, ok := rec.Value.(string)
		if !ok || !Connective(connective).IsValid() {
			return nil, d.fail("operator value must be \"AND\" or \"OR\", got %v", rec.Value)
		}
		if rec.Left == nil || rec.Right == nil {
			return nil, d.fail("operator node must have both children")
		}

		left, err := d.child(rec.Left, "left")
		if err != nil {
			return nil, err
		}
		right, err := d.child(rec.Right, "right")
		if err != nil {
			return nil, err
		}
		return NewOperator(Connective(connective), left, right), nil

	default:
		return nil, d.fail("unrecognized node_type %q", rec.NodeType)
	}
}

// decodeOperand validates and converts an operand's [attribute, operator, literal] tuple.
func (d *decoder) decodeOperand(value interface{}) (Node, error) {
	tuple, ok := toSlice(value)
	if !ok || len(tuple) != 3 {
		return nil, d.fail("operand value must be a 3-element [attribute, operator, literal] list")
	}

	attribute, ok := tuple[0].(string)
	if !ok || attribute == "" {
		return nil, d.fail("operand attribute must be a non-empty string")
	}

	opStr, ok := tuple[1].(string)
	if !ok || !Comparison(opStr).IsValid() {
		return nil, d.fail("unsupported comparison operator %v", tuple[1])
	}

	var lit Literal
	switch v := tuple[2].(type) {
	case string:
		lit = StringLiteral(v)
	case bool:
		lit = BoolLiteral(v)
	default:
		num, ok := NumericValue(v)
		if !ok {
			return nil, d.fail("operand literal must be a number, string or boolean, got %T", tuple[2])
		}
		lit = NumberLiteral(num)
	}

	return NewOperand(attribute, Comparison(opStr), lit), nil
}

// toSlice accepts []interface{} as produced by JSON/YAML decoding, or any
// other slice or array type built by Go callers.
func toSlice(v interface{}) ([]interface{}, bool) {
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// EncodeJSON serializes a tree to canonical JSON. A nil tree encodes as "null".
// Comparison operators are written verbatim rather than HTML-escaped.
func EncodeJSON(n Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Serialize(n)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseRecordJSON reads a canonical record from JSON without converting it
// to a tree. Numbers are kept as json.Number.
func ParseRecordJSON(data []byte) (*Record, error) {
	var rec *Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return rec, nil
}

// DecodeJSON parses canonical JSON into a tree.
func DecodeJSON(data []byte) (Node, error) {
	rec, err := ParseRecordJSON(data)
	if err != nil {
		return nil, err
	}
	return Deserialize(rec)
}

// EncodeYAML serializes a tree to the canonical record in YAML form.
// A nil tree encodes as "null".
func EncodeYAML(n Node) ([]byte, error) {
	return yaml.Marshal(Serialize(n))
}

// ParseRecordYAML reads a canonical record from YAML without converting it
// to a tree.
func ParseRecordYAML(data []byte) (*Record, error) {
	var rec *Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, &ruleErrors.MalformedAstError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return rec, nil
}

// DecodeYAML parses a canonical record in YAML form into a tree.
func DecodeYAML(data []byte) (Node, error) {
	rec, err := ParseRecordYAML(data)
	if err != nil {
		return nil, err
	}
	return Deserialize(rec)
}
