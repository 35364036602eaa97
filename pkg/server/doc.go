// Package server provides the HTTP server of the webdis gateway.
//
// It wires the gateway components together (ACL engine, connection pools,
// dispatcher, pub/sub bridge, encoder and readiness checks), mounts them
// behind the middleware chain and manages the listener lifecycle.
//
// # Basic Usage
//
//	cfg := config.GetConfig()
//
//	srv, err := server.NewServer(cfg, server.Options{
//	    Metrics: collector,
//	    Tracer:  tracer,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start returns once ctx is canceled and shutdown has completed.
//
// # Graceful Shutdown
//
// The shutdown process:
//  1. Closes every subscription so event streams end
//  2. Stops accepting new connections
//  3. Waits for in-flight requests (up to server.shutdown_timeout)
//  4. Closes the backend connection pools
//
// # Routes
//
//   - /healthz, /readyz, /version: probes (paths configurable)
//   - /metrics: Prometheus metrics, when enabled
//   - /.json, /.raw, /.msg: WebSocket endpoints when websockets is true,
//     otherwise a 400 with code websockets_disabled
//   - anything else: a command, e.g. GET /SET/key/value
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost first):
//  1. Recovery: recovers from panics and returns 500
//  2. RequestID: accepts or generates X-Request-ID
//  3. Logging: logs completion and records HTTP metrics
//  4. Tracing: extracts W3C trace context and opens a span
//  5. CORS: Access-Control-Allow-Origin: * and OPTIONS preflights
//
// # TLS Support
//
// The listener serves HTTPS when configured:
//
//	server:
//	  tls:
//	    enabled: true
//	    cert_file: "/path/to/cert.pem"
//	    key_file: "/path/to/key.pem"
//	    min_version: "1.3"
//
// Backend TLS is configured separately under ssl and passed in through
// Options.BackendTLS.
package server
