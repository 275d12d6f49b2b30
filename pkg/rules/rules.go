package rules

import (
	"fmt"
	"log/slog"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
	"mercator-hq/ruler/pkg/rules/evaluator"
	"mercator-hq/ruler/pkg/rules/parser"
)

// Engine parses, combines and evaluates rules with shared settings.
// It is safe for concurrent use once configured.
type Engine struct {
	logger      *slog.Logger
	parser      *parser.Parser
	evaluator   *evaluator.Evaluator
	maxASTDepth int
}

// NewEngine creates an engine with default limits.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:      logger.With("component", "rules.engine"),
		parser:      parser.NewParser(),
		evaluator:   evaluator.NewEvaluator(logger),
		maxASTDepth: ast.DefaultMaxDepth,
	}
}

// WithMaxDepth sets the parenthesis nesting limit for rule strings.
func (e *Engine) WithMaxDepth(depth int) *Engine {
	e.parser.WithMaxDepth(depth)
	return e
}

// WithMaxASTDepth sets the tree depth limit for deserialized records. Parsed
// and combined trees are held to the same limit so they can be decoded again.
func (e *Engine) WithMaxASTDepth(depth int) *Engine {
	if depth <= 0 {
		depth = ast.DefaultMaxDepth
	}
	e.maxASTDepth = depth
	e.parser.WithMaxTreeDepth(depth)
	return e
}

// WithRedactor masks record values in evaluation debug logs.
func (e *Engine) WithRedactor(r evaluator.Redactor) *Engine {
	e.evaluator.WithRedactor(r)
	return e
}

// CreateRule parses a rule string into a tree.
func (e *Engine) CreateRule(rule string) (ast.Node, error) {
	node, err := e.parser.ParseString(rule)
	if err != nil {
		e.logger.Debug("rule rejected", "rule", rule, "error", err)
		return nil, err
	}

	e.logger.Debug("rule parsed",
		"nodes", ast.Count(node),
		"depth", ast.Depth(node),
	)
	return node, nil
}

// CombineRules parses every rule string and folds the trees left to right
// with AND. It returns nil for an empty list. The first rule that fails to
// parse aborts the whole call; the error names its index and keeps the
// underlying rule error reachable through errors.As.
func (e *Engine) CombineRules(rules []string) (ast.Node, error) {
	nodes := make([]ast.Node, 0, len(rules))
	for i, rule := range rules {
		node, err := e.parser.ParseString(rule)
		if err != nil {
			e.logger.Debug("rule rejected", "index", i, "rule", rule, "error", err)
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		nodes = append(nodes, node)
	}

	combined := ast.Combine(nodes)
	if depth := ast.Depth(combined); depth > e.maxASTDepth {
		return nil, &ruleErrors.MalformedAstError{
			Path:    "root",
			Message: fmt.Sprintf("combined tree has %d levels, at most %d are allowed", depth, e.maxASTDepth),
		}
	}
	e.logger.Debug("rules combined", "count", len(nodes), "nodes", ast.Count(combined))
	return combined, nil
}

// Evaluate reports whether record satisfies node.
func (e *Engine) Evaluate(node ast.Node, record map[string]interface{}) (bool, error) {
	return e.evaluator.Evaluate(node, record)
}

// EvaluateRecord decodes a canonical record and evaluates it against data.
func (e *Engine) EvaluateRecord(rec *ast.Record, data map[string]interface{}) (bool, error) {
	node, err := e.DeserializeAST(rec)
	if err != nil {
		return false, err
	}
	return e.evaluator.Evaluate(node, data)
}

// DeserializeAST converts a canonical record into a tree, enforcing the
// engine's depth limit.
func (e *Engine) DeserializeAST(rec *ast.Record) (ast.Node, error) {
	return ast.DeserializeWithMaxDepth(rec, e.maxASTDepth)
}

// CreateRule parses a rule string with default settings.
func CreateRule(rule string) (ast.Node, error) {
	return parser.ParseString(rule)
}

// CombineRules parses and combines rule strings with default settings.
func CombineRules(rules []string) (ast.Node, error) {
	return NewEngine(nil).CombineRules(rules)
}

// CombineASTs folds already parsed trees with AND. See ast.Combine.
func CombineASTs(nodes []ast.Node) ast.Node {
	return ast.Combine(nodes)
}

// EvaluateRule evaluates node against record with default settings.
func EvaluateRule(node ast.Node, record map[string]interface{}) (bool, error) {
	return evaluator.Evaluate(node, record)
}

// SerializeAST converts a tree to its canonical record. A nil tree yields nil.
func SerializeAST(node ast.Node) *ast.Record {
	return ast.Serialize(node)
}

// DeserializeAST converts a canonical record back into a tree.
func DeserializeAST(rec *ast.Record) (ast.Node, error) {
	return ast.Deserialize(rec)
}
