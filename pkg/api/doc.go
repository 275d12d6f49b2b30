// Package api serves the rule engine over HTTP with a JSON envelope.
//
// Every response carries "status": "success" or "error". Errors add a
// "message" and, for rule engine failures, an "error_type" naming the
// failure kind (lex, parse, malformed_ast, evaluation, type_mismatch):
//
//	POST /create_rule            {"rule_string": "...", "name": "..."}
//	POST /combine_rules          {"rule_strings": ["...", "..."]}
//	POST /evaluate_rule          {"ast": {...}, "data": {...}}
//	GET  /catalog
//	POST /catalog/{name}/evaluate {"data": {...}}
//	GET  /rules?limit=&offset=
//	GET  /rules/{id}
//	DELETE /rules/{id}
//	GET  /health
//	GET  /metrics
//
// Created and combined rules are persisted to the configured store. The
// catalog routes exist only when a catalog is attached.
package api
