package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ruler/pkg/config"
)

// RequestMetrics tracks HTTP API requests.
//
// Metrics:
//   - ruler_http_requests_total{route,method,status}
//   - ruler_http_request_duration_seconds{route}
//   - ruler_http_rate_limited_total{reason}
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Total number of HTTP requests rejected by the rate limiter",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration, rm.rateLimited)
	return rm
}

// RecordRequest records one HTTP request.
func (rm *RequestMetrics) RecordRequest(route, method string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRateLimited records a rejected request. reason is "rate" or
// "concurrency".
func (rm *RequestMetrics) RecordRateLimited(reason string) {
	rm.rateLimited.WithLabelValues(reason).Inc()
}
