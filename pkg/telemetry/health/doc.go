// Package health serves liveness, readiness and version endpoints.
//
// Liveness only says the process is up. Readiness runs every registered
// check concurrently, each bounded by the configured timeout, and answers
// 503 when any of them fails. The gateway registers a backend check that
// pings the store over its own connection, so a saturated command pool
// does not make the instance look unready.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("backend", health.BackendCheck(client))
//	checker.Register(mux, &cfg.Telemetry.Health, health.BuildInfo{Version: version})
package health
