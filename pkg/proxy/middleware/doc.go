// Package middleware provides the HTTP middleware chain wrapped around
// every gateway route.
//
// # Middleware Chain
//
//	handler = Recovery(RequestID(Logging(CORS(handler))))
//
// Order (outermost first):
//  1. Recovery: turn handler panics into a 500 error body
//  2. RequestID: accept or generate X-Request-ID and store it in the
//     context, where the logging handler picks it up
//  3. Logging: log and count every request with status and latency
//  4. CORS: allow any origin; answer OPTIONS preflights directly
//
// The response writer wrapper used for logging keeps Flush, Hijack and
// Unwrap working, so Server-Sent Events and WebSocket upgrades pass
// through the chain untouched.
package middleware
