package api

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/ruler/pkg/rules/ast"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
	"mercator-hq/ruler/pkg/rules/lexer"
	"mercator-hq/ruler/pkg/store"
	"mercator-hq/ruler/pkg/telemetry/logging"
	"mercator-hq/ruler/pkg/telemetry/tracing"
)

const (
	// CombinedRuleName names persisted combined rules when the request
	// does not.
	CombinedRuleName = "combined_rule"

	// evaluationSource labels evaluations of client supplied trees.
	evaluationSource = "api"
)

// createRule parses a rule string, persists it and returns its tree.
func (a *API) createRule(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeBody(r, "rule_string")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ruleString, err := stringField(fields, "rule_string")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	name, err := optionalString(fields, "name")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	ctx, span := a.tracer.Start(r.Context(), "rules.create")
	defer span.End()

	start := time.Now()
	node, err := a.engine.CreateRule(ruleString)
	a.metrics.RecordParse(kindLabel(err), time.Since(start))
	if err != nil {
		tracing.SetErrorAttributes(span, err)
		a.writeError(w, r, err)
		return
	}
	tracing.SetTreeAttributes(span, node)

	rec := ast.Serialize(node)
	rule := &store.StoredRule{Name: name, RuleString: ruleString, AST: *rec}
	if err := a.store.Save(ctx, rule); err != nil {
		tracing.SetErrorAttributes(span, err)
		a.writeError(w, r, err)
		return
	}
	tracing.SetRuleAttributes(span, rule.ID, rule.Name)

	a.logger.InfoContext(logging.WithRuleID(ctx, rule.ID), "rule created",
		"name", rule.Name,
		"nodes", ast.Count(node),
	)
	writeSuccess(w, map[string]interface{}{
		"id":  rule.ID,
		"ast": rec,
	})
}

// combineRules parses every rule string, folds them with AND and persists
// the result. An empty list returns a null tree and persists nothing.
func (a *API) combineRules(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeBody(r, "rule_strings")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ruleStrings, err := stringListField(fields, "rule_strings")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	name, err := optionalString(fields, "name")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.maxCombine > 0 && len(ruleStrings) > a.maxCombine {
		a.writeError(w, r, badRequest("rule_strings has %d entries, at most %d can be combined", len(ruleStrings), a.maxCombine))
		return
	}

	ctx, span := a.tracer.Start(r.Context(), "rules.combine",
		trace.WithAttributes(attribute.Int(tracing.AttrRuleCount, len(ruleStrings))),
	)
	defer span.End()

	combined, err := a.engine.CombineRules(ruleStrings)
	a.metrics.RecordCombine(len(ruleStrings), kindLabel(err))
	if err != nil {
		tracing.SetErrorAttributes(span, err)
		a.writeError(w, r, err)
		return
	}
	tracing.SetTreeAttributes(span, combined)

	if combined == nil {
		writeSuccess(w, map[string]interface{}{"combined_ast": nil})
		return
	}

	if name == "" {
		name = CombinedRuleName
	}
	rec := ast.Serialize(combined)
	rule := &store.StoredRule{Name: name, RuleString: joinRules(ruleStrings), AST: *rec}
	if err := a.store.Save(ctx, rule); err != nil {
		tracing.SetErrorAttributes(span, err)
		a.writeError(w, r, err)
		return
	}
	tracing.SetRuleAttributes(span, rule.ID, rule.Name)

	a.logger.InfoContext(logging.WithRuleID(ctx, rule.ID), "rules combined",
		"count", len(ruleStrings),
		"nodes", ast.Count(combined),
	)
	writeSuccess(w, map[string]interface{}{
		"id":           rule.ID,
		"combined_ast": rec,
	})
}

// joinRules renders rule strings as one rule string that parses to the
// same tree as combining them. A rule is parenthesized only when its own
// top-level operators would otherwise regroup with the joining AND, so
// rules already at the parenthesis nesting limit stay parseable unless
// they carry a top-level OR.
func joinRules(ruleStrings []string) string {
	if len(ruleStrings) == 1 {
		return ruleStrings[0]
	}
	parts := make([]string, len(ruleStrings))
	for i, s := range ruleStrings {
		hasAnd, hasOr, ok := topLevelLogical(s)
		// AND is left-associative, so only later rules regroup on AND.
		if !ok || hasOr || (i > 0 && hasAnd) {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, " AND ")
}

// topLevelLogical reports which logical operators of s sit outside any
// parentheses. ok is false when s does not tokenize.
func topLevelLogical(s string) (hasAnd, hasOr, ok bool) {
	tokens, err := lexer.Tokenize(s)
	if err != nil {
		return false, false, false
	}
	depth := 0
	for _, tok := range tokens {
		switch tok.Kind {
		case lexer.LParen:
			depth++
		case lexer.RParen:
			depth--
		case lexer.Logical:
			if depth != 0 {
				continue
			}
			switch tok.Text {
			case lexer.KeywordAnd:
				hasAnd = true
			case lexer.KeywordOr:
				hasOr = true
			}
		}
	}
	return hasAnd, hasOr, true
}

// evaluateRule evaluates a canonical tree against a data record.
func (a *API) evaluateRule(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeBody(r, "ast", "data")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rec, err := recordField(fields, "ast")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	data, err := dataField(fields, "data")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	_, span := a.tracer.Start(r.Context(), "rules.evaluate")
	defer span.End()

	start := time.Now()
	matched, err := a.engine.EvaluateRecord(rec, data)
	a.metrics.RecordEvaluation(evaluationSource, matched, kindLabel(err), time.Since(start))
	if err != nil {
		tracing.SetErrorAttributes(span, err)
		a.writeError(w, r, err)
		return
	}
	tracing.SetResultAttribute(span, matched)

	writeSuccess(w, map[string]interface{}{"result": matched})
}

// CatalogRule describes a catalog entry in listings.
type CatalogRule struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Expression  string   `json:"expression"`
	Attributes  []string `json:"attributes"`
	Source      string   `json:"source"`
}

// CatalogResult is one rule's outcome in a catalog-wide evaluation.
type CatalogResult struct {
	Name      string `json:"name"`
	Matched   bool   `json:"matched"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

func (a *API) listCatalog(w http.ResponseWriter, r *http.Request) {
	snap := a.catalog.Snapshot()
	out := make([]CatalogRule, 0, snap.Len())
	for _, name := range snap.Names() {
		rule, _ := snap.Get(name)
		out = append(out, CatalogRule{
			Name:        rule.Name,
			Description: rule.Description,
			Expression:  rule.Expression,
			Attributes:  ast.Attributes(rule.Tree),
			Source:      rule.Source,
		})
	}
	writeSuccess(w, map[string]interface{}{
		"rules":     out,
		"loaded_at": snap.LoadedAt(),
	})
}

// evaluateCatalog evaluates every catalog rule against one record.
func (a *API) evaluateCatalog(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeBody(r, "data")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	data, err := dataField(fields, "data")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	_, span := a.tracer.Start(r.Context(), "catalog.evaluate_all")
	defer span.End()

	results := a.catalog.EvaluateAll(data)
	span.SetAttributes(attribute.Int(tracing.AttrRuleCount, len(results)))

	out := make([]CatalogResult, 0, len(results))
	for _, res := range results {
		cr := CatalogResult{Name: res.Name, Matched: res.Matched}
		if res.Error != nil {
			cr.Error = res.Error.Error()
			cr.ErrorType = kindLabel(res.Error)
		}
		out = append(out, cr)
	}
	writeSuccess(w, map[string]interface{}{"results": out})
}

// evaluateCatalogRule evaluates one named catalog rule.
func (a *API) evaluateCatalogRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	fields, err := decodeBody(r, "data")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	data, err := dataField(fields, "data")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	ctx := logging.WithRuleName(r.Context(), name)
	_, span := a.tracer.Start(ctx, "catalog.evaluate")
	defer span.End()
	tracing.SetRuleAttributes(span, "", name)

	matched, err := a.catalog.Evaluate(name, data)
	if err != nil {
		tracing.SetErrorAttributes(span, err)
		a.writeError(w, r.WithContext(ctx), err)
		return
	}
	tracing.SetResultAttribute(span, matched)

	writeSuccess(w, map[string]interface{}{
		"rule":   name,
		"result": matched,
	})
}

func (a *API) listRules(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r, a.listDefault, a.listMax)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	stored, err := a.store.List(ctx, store.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	total, err := a.store.Count(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if stored == nil {
		stored = []*store.StoredRule{}
	}

	writeSuccess(w, map[string]interface{}{
		"rules":  stored,
		"count":  len(stored),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) getRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := logging.WithRuleID(r.Context(), id)

	rule, err := a.store.Get(ctx, id)
	if err != nil {
		a.writeError(w, r.WithContext(ctx), err)
		return
	}
	writeSuccess(w, map[string]interface{}{"rule": rule})
}

func (a *API) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := logging.WithRuleID(r.Context(), id)

	if err := a.store.Delete(ctx, id); err != nil {
		a.writeError(w, r.WithContext(ctx), err)
		return
	}
	a.logger.InfoContext(ctx, "rule deleted")
	writeSuccess(w, map[string]interface{}{"id": id})
}

// kindLabel names err for metrics: empty on success, the rule error kind,
// or "internal".
func kindLabel(err error) string {
	if err == nil {
		return ""
	}
	if kind, ok := ruleErrors.KindOf(err); ok {
		return string(kind)
	}
	return "internal"
}
