package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ruler/pkg/config"
)

// outcome labels
const (
	resultOK    = "ok"
	resultError = "error"
)

// RuleMetrics tracks rule engine operations.
//
// Metrics:
//   - ruler_rule_parses_total{result}: rule strings parsed, result is "ok" or an error kind
//   - ruler_rule_parse_duration_seconds: parse latency
//   - ruler_rule_combines_total{result}: combine calls
//   - ruler_rule_combine_size: rule strings per combine call
//   - ruler_rule_evaluations_total{source,result}: result is "true", "false" or an error kind
//   - ruler_rule_evaluation_duration_seconds{source}: evaluation latency
type RuleMetrics struct {
	parsesTotal        *prometheus.CounterVec
	parseDuration      prometheus.Histogram
	combinesTotal      *prometheus.CounterVec
	combineSize        prometheus.Histogram
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
}

// NewRuleMetrics creates and registers rule metrics.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		parsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_parses_total",
				Help:      "Total number of rule strings parsed",
			},
			[]string{"result"},
		),

		parseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_parse_duration_seconds",
				Help:      "Duration of rule parsing in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),

		combinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_combines_total",
				Help:      "Total number of combine requests",
			},
			[]string{"result"},
		),

		combineSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_combine_size",
				Help:      "Number of rule strings per combine request",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
			},
		),

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"source", "result"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Duration of rule evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(
		rm.parsesTotal,
		rm.parseDuration,
		rm.combinesTotal,
		rm.combineSize,
		rm.evaluationsTotal,
		rm.evaluationDuration,
	)

	return rm
}

// RecordParse records one parse.
func (rm *RuleMetrics) RecordParse(kind string, duration time.Duration) {
	rm.parsesTotal.WithLabelValues(resultLabel(kind)).Inc()
	rm.parseDuration.Observe(duration.Seconds())
}

// RecordCombine records one combine call.
func (rm *RuleMetrics) RecordCombine(count int, kind string) {
	rm.combinesTotal.WithLabelValues(resultLabel(kind)).Inc()
	rm.combineSize.Observe(float64(count))
}

// RecordEvaluation records one evaluation.
func (rm *RuleMetrics) RecordEvaluation(source string, matched bool, kind string, duration time.Duration) {
	result := kind
	if result == "" {
		result = strconv.FormatBool(matched)
	}
	rm.evaluationsTotal.WithLabelValues(source, result).Inc()
	rm.evaluationDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func resultLabel(kind string) string {
	if kind == "" {
		return resultOK
	}
	return kind
}
