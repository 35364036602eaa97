// Package telemetry groups the gateway's observability packages.
//
// # Components
//
//   - logging: slog setup, log file output with fsync policy, request and
//     session ids carried in the context, argument redaction
//   - metrics: Prometheus counters and histograms for HTTP requests,
//     commands, pools and pub/sub
//   - tracing: OpenTelemetry spans exported over OTLP/gRPC
//   - health: liveness, readiness (backend PING) and version endpoints
//
// # Usage
//
//	out, err := logging.Setup(cfg)
//	defer out.Close()
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RegisterRuntime()
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
// A nil *metrics.Collector or *tracing.Tracer is a no-op, so callers pass
// nil to turn either off.
package telemetry
