// Package health aggregates component health checks for the /health endpoint.
//
// Components register a CheckFunc by name (the rule store pings its database,
// the catalog reports whether its last reload succeeded). Checks run
// concurrently with a per-check timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("store", store.Ping)
//	mux.Handle("GET /health", checker.Handler())
//
// The overall status is "ok" when every check passes, "unhealthy" when all
// fail and "degraded" otherwise.
package health
