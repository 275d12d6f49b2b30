package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
)

// Span attribute keys. Custom keys live under the "ruler." namespace.
const (
	AttrRequestID = "ruler.request_id"
	AttrRuleID    = "ruler.rule.id"
	AttrRuleName  = "ruler.rule.name"
	AttrRuleCount = "ruler.rule.count"
	AttrTreeDepth = "ruler.tree.depth"
	AttrTreeNodes = "ruler.tree.nodes"
	AttrResult    = "ruler.result"
	AttrErrorKind = "ruler.error.kind"
)

// SetRuleAttributes records the identity of a stored or catalog rule.
// Empty values are skipped.
func SetRuleAttributes(span trace.Span, id, name string) {
	attrs := make([]attribute.KeyValue, 0, 2)
	if id != "" {
		attrs = append(attrs, attribute.String(AttrRuleID, id))
	}
	if name != "" {
		attrs = append(attrs, attribute.String(AttrRuleName, name))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// SetTreeAttributes records the shape of a rule tree. A nil tree records
// zero nodes.
func SetTreeAttributes(span trace.Span, node ast.Node) {
	if node == nil {
		span.SetAttributes(attribute.Int(AttrTreeNodes, 0))
		return
	}
	span.SetAttributes(
		attribute.Int(AttrTreeDepth, ast.Depth(node)),
		attribute.Int(AttrTreeNodes, ast.Count(node)),
	)
}

// SetResultAttribute records an evaluation outcome.
func SetResultAttribute(span trace.Span, matched bool) {
	span.SetAttributes(attribute.Bool(AttrResult, matched))
}

// SetErrorAttributes records err on the span, tagging rule errors with their
// kind.
func SetErrorAttributes(span trace.Span, err error) {
	if err == nil {
		return
	}
	if kind, ok := ruleErrors.KindOf(err); ok {
		span.SetAttributes(attribute.String(AttrErrorKind, string(kind)))
	}
	SetError(span, err)
}
