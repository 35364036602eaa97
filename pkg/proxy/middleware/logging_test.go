package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/telemetry/metrics"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggingMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(&config.MetricsConfig{Namespace: "webdis"}, reg)

	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"ok", http.StatusOK, "level=INFO"},
		{"client error", http.StatusForbidden, "level=WARN"},
		{"server error", http.StatusServiceUnavailable, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			wrapped := LoggingMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/GET/k", nil))

			out := logs.String()
			if !strings.Contains(out, "request completed") || !strings.Contains(out, tt.level) {
				t.Errorf("log output missing %s completion line:\n%s", tt.level, out)
			}
		})
	}

	if n := testutil.CollectAndCount(reg, "webdis_http_requests_total"); n != 3 {
		t.Errorf("webdis_http_requests_total series = %d, want 3", n)
	}
}

func TestLoggingMiddlewareStatusDefaultsTo200(t *testing.T) {
	captureLogs(t)

	var rw *responseWriter
	wrapped := LoggingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw = w.(*responseWriter)
		_, _ = w.Write([]byte("OK"))
	}))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/PING", nil))

	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d", rw.statusCode)
	}
}

func TestResponseWriterPassThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	var _ http.Flusher = rw
	var _ http.Hijacker = rw

	rw.Flush()
	if !rec.Flushed {
		t.Error("Flush did not reach the underlying writer")
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap returned a different writer")
	}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("Hijack on a recorder should fail")
	}
}
