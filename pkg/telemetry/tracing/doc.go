// Package tracing provides OpenTelemetry tracing for webdis.
//
// When telemetry.tracing.enabled is set, spans are exported over OTLP/gRPC
// to telemetry.tracing.endpoint. The HTTP middleware opens one span per
// request (continuing any incoming W3C traceparent), the dispatcher adds a
// child span per backend command and the pub/sub bridge one per
// subscription. Argument values and payloads are never recorded.
//
// Sampling is one of "always", "never" or "ratio" and always respects the
// parent's decision:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: otel-collector:4317
//
// A disabled or nil *Tracer is safe to use and produces no-op spans.
package tracing
