// Package metrics exposes Prometheus metrics for the ruler service.
//
// A Collector owns a private registry and groups metrics by concern:
//
//   - rule metrics: parses, combines and evaluations, by outcome and error kind
//   - request metrics: HTTP requests by route, method and status
//   - store metrics: storage operations, stored rule count, retention pruning
//   - catalog metrics: loaded rule count and reload outcomes
//
// All names carry the configured namespace (default "ruler"), e.g.
// ruler_rule_evaluations_total. Mount Collector.Handler at the configured
// path to expose them.
//
// Every recording method is a no-op on a nil *Collector or when metrics are
// disabled, so components can hold an optional collector without checks.
package metrics
