package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ruler/pkg/config"
)

// CatalogMetrics tracks the named rule catalog.
//
// Metrics:
//   - ruler_catalog_rules: rules in the active snapshot
//   - ruler_catalog_reloads_total{result}
//   - ruler_catalog_rule_matches_total{rule,matched}
type CatalogMetrics struct {
	rules        prometheus.Gauge
	reloadsTotal *prometheus.CounterVec
	matchesTotal *prometheus.CounterVec
}

// NewCatalogMetrics creates and registers catalog metrics.
func NewCatalogMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CatalogMetrics {
	cm := &CatalogMetrics{
		rules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "catalog",
				Name:      "rules",
				Help:      "Number of rules in the active catalog",
			},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "catalog",
				Name:      "reloads_total",
				Help:      "Total number of catalog reload attempts",
			},
			[]string{"result"},
		),

		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "catalog",
				Name:      "rule_matches_total",
				Help:      "Total number of catalog rule evaluations by outcome",
			},
			[]string{"rule", "matched"},
		),
	}

	registry.MustRegister(cm.rules, cm.reloadsTotal, cm.matchesTotal)
	return cm
}

// RecordReload records a reload attempt.
func (cm *CatalogMetrics) RecordReload(err error, rules int) {
	if err != nil {
		cm.reloadsTotal.WithLabelValues(resultError).Inc()
		return
	}
	cm.reloadsTotal.WithLabelValues(resultOK).Inc()
	cm.rules.Set(float64(rules))
}

// RecordRuleEvaluation records the outcome of one named rule.
func (cm *CatalogMetrics) RecordRuleEvaluation(rule string, matched bool) {
	cm.matchesTotal.WithLabelValues(rule, strconv.FormatBool(matched)).Inc()
}
