package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/telemetry/health"
	"mercator-hq/ruler/pkg/telemetry/logging"
	"mercator-hq/ruler/pkg/telemetry/metrics"
	"mercator-hq/ruler/pkg/telemetry/tracing"
)

// Telemetry bundles the process logger, metrics collector, tracer and health
// checker built from one configuration.
type Telemetry struct {
	logger   *slog.Logger
	redactor *logging.Redactor
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	health   *health.Checker
}

// New builds every telemetry component. Logs are written to w, or stderr
// when w is nil.
func New(cfg *config.TelemetryConfig, version string, w io.Writer) (*Telemetry, error) {
	if cfg == nil {
		return nil, errors.New("telemetry config is nil")
	}

	logger, err := logging.New(cfg.Logging, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		logger:   logger,
		redactor: logging.NewRedactor(cfg.Logging.RedactAttributes),
		metrics:  metrics.NewCollector(&cfg.Metrics, nil),
		tracer:   tracer,
		health:   health.New(2 * time.Second).WithVersion(version),
	}, nil
}

// Logger returns the process logger.
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Redactor returns the redactor for record attributes written to logs.
func (t *Telemetry) Redactor() *logging.Redactor { return t.redactor }

// Metrics returns the metrics collector. Its methods are no-ops when metrics
// are disabled.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer. It produces noop spans when tracing is disabled.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
