package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status values reported by the checker.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds a single component check.
const DefaultCheckTimeout = 5 * time.Second

// CheckFunc reports whether a component is healthy. It returns nil when it is.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// Report is the aggregated health of the process.
type Report struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return r.Status == StatusOK
}

// Checker runs registered component checks concurrently.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	version string
}

// New creates a checker. A zero timeout uses DefaultCheckTimeout.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// WithVersion sets the version string included in reports.
func (c *Checker) WithVersion(version string) *Checker {
	c.version = version
	return c
}

// RegisterCheck adds or replaces the check for a named component.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a component check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered component names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every registered check and aggregates the results. With no
// checks registered the process is reported healthy.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.runCheck(ctx, check)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := StatusOK
	failed := 0
	for _, result := range results {
		if result.Status != StatusOK {
			failed++
		}
	}
	switch {
	case failed == 0:
	case failed == len(results):
		status = StatusUnhealthy
	default:
		status = StatusDegraded
	}

	return Report{
		Status:    status,
		Version:   c.version,
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
}

// runCheck executes one check, giving up after the checker timeout even if
// the check ignores its context.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check(checkCtx)
	}()

	select {
	case err := <-errCh:
		result := CheckResult{Status: StatusOK, DurationMs: millis(time.Since(start))}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
		}
		return result
	case <-checkCtx.Done():
		return CheckResult{
			Status:     StatusUnhealthy,
			Message:    "health check timeout",
			DurationMs: millis(time.Since(start)),
		}
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
