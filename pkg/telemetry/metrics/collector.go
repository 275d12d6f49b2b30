package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/ruler/pkg/config"
)

// otherLabel replaces label values once a metric hits its cardinality limit.
const otherLabel = "other"

// maxRuleNames bounds the number of distinct catalog rule names used as labels.
const maxRuleNames = 1000

// Collector records rule engine, HTTP, storage and catalog metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ruleMetrics    *RuleMetrics
	requestMetrics *RequestMetrics
	storeMetrics   *StoreMetrics
	catalogMetrics *CatalogMetrics

	ruleNames *CardinalityLimiter
}

// NewCollector creates a collector registering into registry, or into a new
// private registry when registry is nil.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	c := &Collector{
		config:    cfg,
		registry:  registry,
		ruleNames: NewCardinalityLimiter(maxRuleNames),
	}

	c.ruleMetrics = NewRuleMetrics(cfg, registry)
	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.storeMetrics = NewStoreMetrics(cfg, registry)
	c.catalogMetrics = NewCatalogMetrics(cfg, registry)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordParse records a rule string parse. kind is empty on success and the
// rule error kind otherwise.
func (c *Collector) RecordParse(kind string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.ruleMetrics.RecordParse(kind, duration)
}

// RecordCombine records a combine call over count rule strings.
func (c *Collector) RecordCombine(count int, kind string) {
	if !c.enabled() {
		return
	}
	c.ruleMetrics.RecordCombine(count, kind)
}

// RecordEvaluation records an evaluation. source is "ast" for ad-hoc trees
// and "catalog" for named rules. kind is empty on success.
func (c *Collector) RecordEvaluation(source string, matched bool, kind string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.ruleMetrics.RecordEvaluation(source, matched, kind, duration)
}

// RecordCatalogEvaluation records an evaluation of a named catalog rule.
func (c *Collector) RecordCatalogEvaluation(name string, matched bool, kind string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	if !c.ruleNames.Allow(name) {
		name = otherLabel
	}
	c.ruleMetrics.RecordEvaluation("catalog", matched, kind, duration)
	c.catalogMetrics.RecordRuleEvaluation(name, matched)
}

// RecordRequest records a completed HTTP request.
func (c *Collector) RecordRequest(route, method string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordRequest(route, method, status, duration)
}

// RecordRateLimited records a request rejected by the rate limiter.
func (c *Collector) RecordRateLimited(reason string) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordRateLimited(reason)
}

// RecordStoreOperation records a storage operation and its outcome
// ("ok", "not_found" or "error").
func (c *Collector) RecordStoreOperation(backend, op, result string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.storeMetrics.RecordOperation(backend, op, result, duration)
}

// SetStoredRules sets the current number of stored rules.
func (c *Collector) SetStoredRules(count int64) {
	if !c.enabled() {
		return
	}
	c.storeMetrics.SetStoredRules(count)
}

// RecordPruned records rules removed by a retention run.
func (c *Collector) RecordPruned(count int64) {
	if !c.enabled() {
		return
	}
	c.storeMetrics.RecordPruned(count)
}

// RecordCatalogReload records a catalog reload attempt and, on success, the
// number of rules loaded.
func (c *Collector) RecordCatalogReload(err error, rules int) {
	if !c.enabled() {
		return
	}
	c.catalogMetrics.RecordReload(err, rules)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct values admitted for a label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label: it was seen before
// or the limit has not been reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of admitted values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
