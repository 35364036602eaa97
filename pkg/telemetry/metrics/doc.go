// Package metrics provides Prometheus metrics for the webdis gateway.
//
// # Metrics Categories
//
//   - HTTP Metrics: request count and duration by method and status
//   - Command Metrics: backend command count, duration, retries, ACL denials
//   - Pool Metrics: connections in use and open, checkout wait, exhaustion, dials
//   - Pub/Sub Metrics: active subscriptions, forwarded messages, slow consumers
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordCommand("GET", "ok", 300*time.Microsecond)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality
//
// Command names come from clients, so the command label is capped by a
// CardinalityLimiter. Names beyond the cap are reported as "other".
//
// A nil *Collector is valid and records nothing, which keeps call sites in
// the pool and dispatcher free of nil checks.
package metrics
