package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/ruler/pkg/rules"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
	"mercator-hq/ruler/pkg/telemetry/metrics"
)

// Result is the outcome of evaluating one catalog rule.
type Result struct {
	Name    string `json:"name"`
	Matched bool   `json:"matched"`
	Error   error  `json:"-"`
}

// Catalog serves named rules from the most recent successful load.
// Readers never block on a reload.
type Catalog struct {
	path    string
	loader  *Loader
	engine  *rules.Engine
	logger  *slog.Logger
	metrics *metrics.Collector

	snapshot atomic.Pointer[Snapshot]

	mu         sync.RWMutex
	lastErr    error
	lastReload time.Time
}

// New creates a catalog for the file or directory at path. Call Reload to
// perform the first load.
func New(path string, engine *rules.Engine, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = rules.NewEngine(logger)
	}
	c := &Catalog{
		path:   path,
		loader: NewLoader(engine),
		engine: engine,
		logger: logger.With("component", "catalog", "path", path),
	}
	c.snapshot.Store(&Snapshot{rules: map[string]*Rule{}})
	return c
}

// WithMetrics records reloads and evaluations on collector.
func (c *Catalog) WithMetrics(collector *metrics.Collector) *Catalog {
	c.metrics = collector
	return c
}

// Path returns the catalog location.
func (c *Catalog) Path() string { return c.path }

// Reload loads the catalog again and swaps it in. On failure the current
// snapshot stays active and the error is returned.
func (c *Catalog) Reload() error {
	start := time.Now()
	snap, err := c.loader.Load(c.path)

	c.mu.Lock()
	c.lastErr = err
	c.lastReload = time.Now()
	c.mu.Unlock()

	if err != nil {
		c.metrics.RecordCatalogReload(err, c.Snapshot().Len())
		c.logger.Error("catalog reload failed, keeping previous rules", "error", err)
		return err
	}

	c.snapshot.Store(snap)
	c.metrics.RecordCatalogReload(nil, snap.Len())
	c.logger.Info("catalog loaded",
		"rules", snap.Len(),
		"disabled", snap.Disabled(),
		"files", len(snap.files),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Snapshot returns the active rule set.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Get returns the named rule, or ErrRuleNotFound.
func (c *Catalog) Get(name string) (*Rule, error) {
	rule, ok := c.Snapshot().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuleNotFound, name)
	}
	return rule, nil
}

// Names returns the active rule names in sorted order.
func (c *Catalog) Names() []string {
	return c.Snapshot().Names()
}

// Evaluate evaluates the named rule against record.
func (c *Catalog) Evaluate(name string, record map[string]interface{}) (bool, error) {
	rule, err := c.Get(name)
	if err != nil {
		return false, err
	}
	return c.evaluate(rule, record)
}

// EvaluateAll evaluates every active rule against record, in name order.
// A failing rule reports its error in its Result and does not stop the
// others.
func (c *Catalog) EvaluateAll(record map[string]interface{}) []Result {
	snap := c.Snapshot()
	results := make([]Result, 0, snap.Len())
	for _, name := range snap.names {
		matched, err := c.evaluate(snap.rules[name], record)
		results = append(results, Result{Name: name, Matched: matched, Error: err})
	}
	return results
}

func (c *Catalog) evaluate(rule *Rule, record map[string]interface{}) (bool, error) {
	start := time.Now()
	matched, err := c.engine.Evaluate(rule.Tree, record)

	kind := ""
	if k, ok := ruleErrors.KindOf(err); ok {
		kind = string(k)
	} else if err != nil {
		kind = "internal"
	}
	c.metrics.RecordCatalogEvaluation(rule.Name, matched, kind, time.Since(start))
	return matched, err
}

// LastError returns the error of the most recent reload, or nil.
func (c *Catalog) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastReload returns when the catalog was last reloaded.
func (c *Catalog) LastReload() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReload
}

// Check is a health check reporting the last reload error.
func (c *Catalog) Check(ctx context.Context) error {
	if err := c.LastError(); err != nil {
		return fmt.Errorf("last reload failed: %w", err)
	}
	return nil
}
