package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack/v5"

	"mercator-hq/webdis/internal/redistest"
	"mercator-hq/webdis/pkg/acl"
	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/dispatch"
	"mercator-hq/webdis/pkg/encoder"
	"mercator-hq/webdis/pkg/pool"
	"mercator-hq/webdis/pkg/proxy/types"
	"mercator-hq/webdis/pkg/pubsub"
	"mercator-hq/webdis/pkg/resp"
	"mercator-hq/webdis/pkg/telemetry/metrics"
)

// stack wires real pools, dispatcher and bridge against a fake backend.
type stack struct {
	srv      *redistest.Server
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Collector
	bridge   *pubsub.Bridge
	commands *CommandHandler
}

func newStack(t *testing.T, rules ...config.ACLRule) *stack {
	t.Helper()

	srv := redistest.NewServer(t)
	cfg := &config.Config{
		RedisHost:          srv.Host(),
		RedisPort:          srv.Port(),
		HTTPThreads:        1,
		PoolSizePerThread:  2,
		HTTPMaxRequestSize: 64,
		ACL:                rules,
	}
	config.ApplyDefaults(cfg)
	cfg.Pool.CheckoutTimeout = 200 * time.Millisecond
	cfg.Pool.ConnectTimeout = time.Second
	cfg.Pool.Reconnect.InitialInterval = time.Millisecond
	cfg.PubSub.BufferSize = 16

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(&config.MetricsConfig{Namespace: "webdis", MaxCommandLabels: 10}, reg)

	engine, err := acl.New(cfg.ACL)
	if err != nil {
		t.Fatalf("acl.New() error = %v", err)
	}

	pools := pool.NewManager(cfg, nil, m)
	t.Cleanup(pools.Close)
	bridge := pubsub.NewBridge(cfg, nil, m, nil)
	t.Cleanup(bridge.Close)

	return &stack{
		srv:      srv,
		cfg:      cfg,
		registry: reg,
		metrics:  m,
		bridge:   bridge,
		commands: &CommandHandler{
			Parser: command.NewParser(command.Options{
				MaxBodySize:  cfg.HTTPMaxRequestSize,
				MaxURILength: cfg.HTTPMaxURILength,
			}),
			ACL:        engine,
			Dispatcher: dispatch.New(pools, nil, m),
			Encoder:    encoder.New(encoder.BinaryBase64),
			Streams:    &SSEHandler{Bridge: bridge, Keepalive: time.Hour},
			Metrics:    m,
		},
	}
}

func (s *stack) websocket(format command.OutputFormat) *WebSocketHandler {
	h := NewWebSocketHandler(format)
	h.ACL = s.commands.ACL
	h.Dispatcher = s.commands.Dispatcher
	h.Bridge = s.bridge
	h.Encoder = s.commands.Encoder
	h.Metrics = s.metrics
	h.MaxMessageSize = 1024
	return h
}

func (s *stack) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.commands.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, body []byte) types.ErrorDetail {
	t.Helper()
	var e types.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("error body %q: %v", body, err)
	}
	return e.Error
}

func TestCommandHandler_Scenarios(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		want   string
	}{
		{"set", http.MethodGet, "/SET/a/1", "", 200, `{"SET":"OK"}`},
		{"get", http.MethodGet, "/GET/a", "", 200, `{"GET":"1"}`},
		{"incr fresh key", http.MethodGet, "/INCR/counter", "", 200, `{"INCR":1}`},
		{"casing kept", http.MethodGet, "/get/a", "", 200, `{"get":"1"}`},
		{"nil reply", http.MethodGet, "/GET/missing", "", 200, `{"GET":null}`},
		{"post body", http.MethodPost, "/", "SET/b/2", 200, `{"SET":"OK"}`},
		{"put body", http.MethodPut, "/SET/c", "three", 200, `{"SET":"OK"}`},
		{"read put", http.MethodGet, "/GET/c", "", 200, `{"GET":"three"}`},
		{"raw suffix", http.MethodGet, "/GET/a.raw", "", 200, "1"},
		{"query overrides suffix", http.MethodGet, "/GET/a.raw?type=json", "", 200, `{"GET":"1"}`},
		{"jsonp", http.MethodGet, "/GET/a?jsonp=cb", "", 200, `cb({"GET":"1"})`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.target, nil)
			}
			w := s.do(t, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if got := w.Body.String(); got != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCommandHandler_BackendErrorReply(t *testing.T) {
	s := newStack(t)
	s.srv.Handle("INCR", func(args [][]byte) (resp.Value, error) {
		return resp.Error("ERR value is not an integer or out of range"), nil
	})

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/INCR/a", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	want := `{"INCR":{"error":"ERR value is not an integer or out of range"}}`
	if got := w.Body.String(); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestCommandHandler_Rejections(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{
			name:   "empty path",
			req:    httptest.NewRequest(http.MethodGet, "/", nil),
			status: http.StatusBadRequest,
			code:   types.CodeMalformedCommand,
		},
		{
			name:   "body too large",
			req:    httptest.NewRequest(http.MethodPut, "/SET/a", strings.NewReader(strings.Repeat("x", 65))),
			status: http.StatusRequestEntityTooLarge,
			code:   types.CodeRequestTooLarge,
		},
		{
			name:   "unsubscribe without stream",
			req:    httptest.NewRequest(http.MethodGet, "/UNSUBSCRIBE/ch", nil),
			status: http.StatusBadRequest,
			code:   types.CodeMalformedCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if got := decodeError(t, w.Body.Bytes()); got.Code != tt.code {
				t.Errorf("code = %q, want %q", got.Code, tt.code)
			}
		})
	}

	if n := s.srv.Count("SET"); n != 0 {
		t.Errorf("backend saw %d SET commands, want 0", n)
	}
}

func TestCommandHandler_ACL(t *testing.T) {
	s := newStack(t, config.ACLRule{IP: "10.0.0.0/8", Disabled: []string{"FLUSHALL"}})

	denied := httptest.NewRequest(http.MethodGet, "/FLUSHALL", nil)
	denied.RemoteAddr = "10.1.2.3:5000"
	w := s.do(t, denied)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	detail := decodeError(t, w.Body.Bytes())
	if detail.Code != types.CodeACLDenied || detail.Command != "FLUSHALL" {
		t.Errorf("error = %+v", detail)
	}
	if n := s.srv.Count("FLUSHALL"); n != 0 {
		t.Errorf("denied command reached the backend %d times", n)
	}
	if got := counterValue(t, s.registry, "webdis_acl_denied_total"); got != 1 {
		t.Errorf("acl denied counter = %v, want 1", got)
	}

	allowed := httptest.NewRequest(http.MethodGet, "/FLUSHALL", nil)
	allowed.RemoteAddr = "192.168.1.1:5000"
	if w := s.do(t, allowed); w.Code != http.StatusOK {
		t.Errorf("non-matching IP status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestCommandHandler_BackendUnavailable(t *testing.T) {
	s := newStack(t)
	s.srv.Close()

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/GET/a", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if got := decodeError(t, w.Body.Bytes()); got.Code != types.CodeBackendUnavailable {
		t.Errorf("code = %q", got.Code)
	}
}

func TestCommandHandler_HeadOmitsBody(t *testing.T) {
	s := newStack(t)
	s.srv.Set("a", []byte("1"))

	w := s.do(t, httptest.NewRequest(http.MethodHead, "/GET/a", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD body = %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Length"); got != "11" {
		t.Errorf("Content-Length = %q, want 11", got)
	}
}

func TestCommandHandler_EmptyTrailingArgument(t *testing.T) {
	s := newStack(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/SET/t/", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"SET":"OK"}` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if v, ok := s.srv.Get("t"); !ok || len(v) != 0 {
		t.Errorf("stored value = %q (present %v), want empty string", v, ok)
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/GET/t", nil))
	if got := w.Body.String(); got != `{"GET":""}` {
		t.Errorf("GET body = %s", got)
	}
}

func TestCommandHandler_RoundTrip(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name  string
		key   string
		value []byte
		utf8  bool
	}{
		{"ascii", "ascii", []byte("hello world"), true},
		{"multibyte utf8", "utf8", []byte("héllo, 世界 ✓"), true},
		{"binary", "bin", []byte{0x00, 0xff, 0xfe, 0x80, '\n', 0x01}, false},
		{"empty", "empty", []byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			put := httptest.NewRequest(http.MethodPut, "/SET/"+tt.key, bytes.NewReader(tt.value))
			if w := s.do(t, put); w.Code != http.StatusOK {
				t.Fatalf("PUT status = %d (body %s)", w.Code, w.Body.String())
			}

			w := s.do(t, httptest.NewRequest(http.MethodGet, "/GET/"+tt.key+".raw", nil))
			if !bytes.Equal(w.Body.Bytes(), tt.value) {
				t.Errorf("raw = %q, want %q", w.Body.Bytes(), tt.value)
			}

			w = s.do(t, httptest.NewRequest(http.MethodGet, "/GET/"+tt.key+"?type=msgpack", nil))
			var mp map[string][]byte
			if err := msgpack.Unmarshal(w.Body.Bytes(), &mp); err != nil {
				t.Fatalf("msgpack decode: %v", err)
			}
			if !bytes.Equal(mp["GET"], tt.value) {
				t.Errorf("msgpack = %q, want %q", mp["GET"], tt.value)
			}

			if !tt.utf8 {
				return
			}
			w = s.do(t, httptest.NewRequest(http.MethodGet, "/GET/"+tt.key, nil))
			var js map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &js); err != nil {
				t.Fatalf("json decode %s: %v", w.Body.String(), err)
			}
			if js["GET"] != string(tt.value) {
				t.Errorf("json = %q, want %q", js["GET"], tt.value)
			}
		})
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
