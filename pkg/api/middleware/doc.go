// Package middleware provides the HTTP middleware chain for the rule API.
//
// The server applies it outermost first:
//
//	handler = middleware.MaxBody(cfg.MaxBodyBytes)(handler)
//	handler = middleware.Logging(logger)(handler)
//	handler = middleware.RequestID(handler)
//	handler = middleware.Recovery(logger)(handler)
//
// RequestID runs before Logging so that every request log line carries the
// request ID. Recovery is outermost and turns a handler panic into the API's
// JSON error envelope.
//
// RateLimit is optional and installed with server.Use, inside the chain
// above, so rejected requests are still logged with their request ID.
package middleware
