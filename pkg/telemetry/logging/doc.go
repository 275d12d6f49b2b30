// Package logging builds the process logger for the ruler service.
//
// Logs are written through log/slog. New returns a *slog.Logger whose
// handler adds request-scoped fields (request ID, rule ID, catalog rule
// name) found on the context, so handlers only need the *Context variants:
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.InfoContext(ctx, "rule created", "id", rule.ID)
//	// {"level":"INFO","msg":"rule created","id":"...","request_id":"..."}
//
// A Redactor masks configured record attributes (for example ssn or email)
// wherever records are logged, and plugs into the rule evaluator's debug
// output.
package logging
