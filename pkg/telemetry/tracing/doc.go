// Package tracing provides OpenTelemetry tracing for the rule engine and its
// HTTP API.
//
// When tracing is disabled the Tracer hands out noop spans, so call sites
// never need to check whether tracing is on. When enabled, spans are batched
// to an OTLP gRPC collector and W3C Trace Context is used for propagation.
//
// # Sampling
//
// Three strategies are supported, each wrapped in a parent-based sampler so a
// sampled caller keeps its trace intact:
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "rules.create")
//	defer span.End()
//	tracing.SetTreeAttributes(span, node)
package tracing
