// Package telemetry wires together the observability stack of the rule
// service.
//
// # Components
//
//   - logging: slog logger construction, request context fields, record redaction
//   - metrics: Prometheus collectors for parsing, evaluation, HTTP, storage and catalog
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: component checks behind /health
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, version, nil)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	logger := tel.Logger()
//	tel.Metrics().RecordParse("", time.Since(start))
//	ctx, span := tel.Tracer().Start(ctx, "rules.create")
//	defer span.End()
package telemetry
