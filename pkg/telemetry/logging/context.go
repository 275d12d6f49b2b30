package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// RuleIDKey is the context key for stored rule IDs.
	RuleIDKey contextKey = "rule_id"

	// RuleNameKey is the context key for catalog rule names.
	RuleNameKey contextKey = "rule_name"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRuleID adds a stored rule ID to the context.
func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, RuleIDKey, ruleID)
}

// GetRuleID retrieves the stored rule ID from the context.
func GetRuleID(ctx context.Context) string {
	if ruleID, ok := ctx.Value(RuleIDKey).(string); ok {
		return ruleID
	}
	return ""
}

// WithRuleName adds a catalog rule name to the context.
func WithRuleName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, RuleNameKey, name)
}

// GetRuleName retrieves the catalog rule name from the context.
func GetRuleName(ctx context.Context) string {
	if name, ok := ctx.Value(RuleNameKey).(string); ok {
		return name
	}
	return ""
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if v := GetRequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), v))
	}
	if v := GetRuleID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RuleIDKey), v))
	}
	if v := GetRuleName(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RuleNameKey), v))
	}
	return attrs
}
