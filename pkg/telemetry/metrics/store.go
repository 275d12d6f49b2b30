package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ruler/pkg/config"
)

// StoreMetrics tracks rule storage.
//
// Metrics:
//   - ruler_store_operations_total{backend,op,result}
//   - ruler_store_operation_duration_seconds{backend,op}
//   - ruler_store_rules: rules currently stored
//   - ruler_store_pruned_total: rules removed by retention
type StoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	storedRules       prometheus.Gauge
	prunedTotal       prometheus.Counter
}

// NewStoreMetrics creates and registers store metrics.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of rule store operations",
			},
			[]string{"backend", "op", "result"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of rule store operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to 1.6s
			},
			[]string{"backend", "op"},
		),

		storedRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "rules",
				Help:      "Number of rules currently stored",
			},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "pruned_total",
				Help:      "Total number of rules removed by retention",
			},
		),
	}

	registry.MustRegister(sm.operationsTotal, sm.operationDuration, sm.storedRules, sm.prunedTotal)
	return sm
}

// RecordOperation records one store operation. result is "ok", "not_found"
// or "error".
func (sm *StoreMetrics) RecordOperation(backend, op, result string, duration time.Duration) {
	sm.operationsTotal.WithLabelValues(backend, op, result).Inc()
	sm.operationDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// SetStoredRules sets the stored rule gauge.
func (sm *StoreMetrics) SetStoredRules(count int64) {
	sm.storedRules.Set(float64(count))
}

// RecordPruned adds to the pruned counter.
func (sm *StoreMetrics) RecordPruned(count int64) {
	sm.prunedTotal.Add(float64(count))
}
