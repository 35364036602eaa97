package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/webdis/pkg/telemetry/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength caps client-supplied IDs so they cannot bloat logs.
const maxRequestIDLength = 128

// RequestIDMiddleware reuses a client-supplied X-Request-ID or generates a
// new UUID, stores it in the request context and echoes it in the
// response headers.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestIDMiddleware.
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}
