package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/ruler/pkg/config"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:         true,
		Namespace:       "test",
		DurationBuckets: []float64{0.001, 0.01, 0.1},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)
	if collector.Registry() != registry {
		t.Error("collector registry not set correctly")
	}

	defaulted := NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	if defaulted.config.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("expected default namespace, got %q", defaulted.config.Namespace)
	}
	if defaulted.Registry() == nil {
		t.Error("expected a private registry")
	}
}

func TestCollector_RuleMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordParse("", time.Millisecond)
	c.RecordParse("", time.Millisecond)
	c.RecordParse("parse", time.Millisecond)
	c.RecordCombine(3, "")
	c.RecordEvaluation("ast", true, "", time.Microsecond)
	c.RecordEvaluation("ast", false, "", time.Microsecond)
	c.RecordEvaluation("ast", false, "type_mismatch", time.Microsecond)

	rm := c.ruleMetrics
	if got := testutil.ToFloat64(rm.parsesTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok parses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.parsesTotal.WithLabelValues("parse")); got != 1 {
		t.Errorf("failed parses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.combinesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("combines = %v, want 1", got)
	}
	for _, result := range []string{"true", "false", "type_mismatch"} {
		if got := testutil.ToFloat64(rm.evaluationsTotal.WithLabelValues("ast", result)); got != 1 {
			t.Errorf("evaluations{result=%s} = %v, want 1", result, got)
		}
	}
}

func TestCollector_CatalogMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordCatalogReload(nil, 4)
	c.RecordCatalogReload(errors.New("bad file"), 0)
	c.RecordCatalogEvaluation("vip", true, "", time.Microsecond)

	cm := c.catalogMetrics
	if got := testutil.ToFloat64(cm.rules); got != 4 {
		t.Errorf("catalog rules = %v, want 4", got)
	}
	if got := testutil.ToFloat64(cm.reloadsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.matchesTotal.WithLabelValues("vip", "true")); got != 1 {
		t.Errorf("vip matches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ruleMetrics.evaluationsTotal.WithLabelValues("catalog", "true")); got != 1 {
		t.Errorf("catalog evaluations = %v, want 1", got)
	}
}

func TestCollector_StoreAndRequestMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	c.RecordStoreOperation("memory", "get", "not_found", time.Millisecond)
	c.SetStoredRules(12)
	c.RecordPruned(5)
	c.RecordPruned(2)
	c.RecordRequest("/create_rule", http.MethodPost, http.StatusBadRequest, 3*time.Millisecond)
	c.RecordRateLimited("rate")

	if got := testutil.ToFloat64(c.storeMetrics.operationsTotal.WithLabelValues("memory", "get", "not_found")); got != 1 {
		t.Errorf("store ops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.storeMetrics.storedRules); got != 12 {
		t.Errorf("stored rules = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.storeMetrics.prunedTotal); got != 7 {
		t.Errorf("pruned = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.requestMetrics.requestsTotal.WithLabelValues("/create_rule", "POST", "400")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.requestMetrics.rateLimited.WithLabelValues("rate")); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}
}

func TestCollector_DisabledAndNil(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, nil)
	c.RecordParse("", time.Millisecond)

	if got := testutil.ToFloat64(c.ruleMetrics.parsesTotal.WithLabelValues("ok")); got != 0 {
		t.Errorf("disabled collector recorded %v parses", got)
	}

	var nilCollector *Collector
	nilCollector.RecordParse("", time.Millisecond)
	nilCollector.RecordRequest("/", "GET", 200, time.Millisecond)
	nilCollector.RecordCatalogReload(nil, 1)
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two values to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third value to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("expected known value to stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), nil)
	c.RecordParse("", time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(body), "test_rule_parses_total") {
		t.Errorf("metrics output missing test_rule_parses_total:\n%s", body)
	}
}
