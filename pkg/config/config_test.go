package config

import (
	"testing"
	"time"
)

func TestParse_WebdisJSON(t *testing.T) {
	data := []byte(`{
 "redis_host": "10.0.0.5",
 "redis_port": 6380,
 "redis_auth": ["default", "s3cret"],
 "http_host": "127.0.0.1",
 "http_port": 7380,
 "http_threads": 2,
 "pool_size_per_thread": 3,
 "database": 1,
 "websockets": true,
 "default_root": "/GET/index.html",
 "acl": [
  {"disabled": ["DEBUG"]},
  {"http_basic_auth": "user:password", "enabled": ["DEBUG"]}
 ],
 "verbosity": 6,
 "logfile": "webdis.log",
 "log_fsync": 200
}`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.BackendAddress() != "10.0.0.5:6380" {
		t.Errorf("BackendAddress() = %q", cfg.BackendAddress())
	}
	if cfg.ListenAddress() != "127.0.0.1:7380" {
		t.Errorf("ListenAddress() = %q", cfg.ListenAddress())
	}
	if cfg.RedisAuth.Username != "default" || cfg.RedisAuth.Password != "s3cret" {
		t.Errorf("RedisAuth = %+v", cfg.RedisAuth)
	}
	if cfg.HTTPThreads != 2 || cfg.PoolSizePerThread != 3 || cfg.Database != 1 {
		t.Errorf("threads=%d pool=%d db=%d", cfg.HTTPThreads, cfg.PoolSizePerThread, cfg.Database)
	}
	if !cfg.Websockets {
		t.Error("expected websockets enabled")
	}
	if len(cfg.ACL) != 2 || cfg.ACL[1].HTTPBasicAuth != "user:password" {
		t.Errorf("ACL = %+v", cfg.ACL)
	}
	if cfg.LogVerbosity() != 6 {
		t.Errorf("LogVerbosity() = %d", cfg.LogVerbosity())
	}
	if cfg.LogFsync.Mode != FsyncInterval || cfg.LogFsync.Interval != 200*time.Millisecond {
		t.Errorf("LogFsync = %+v", cfg.LogFsync)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRedisAuth_PasswordOnly(t *testing.T) {
	cfg, err := Parse([]byte(`redis_auth: hunter2`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.RedisAuth.Username != "" || cfg.RedisAuth.Password != "hunter2" {
		t.Errorf("RedisAuth = %+v", cfg.RedisAuth)
	}
	if !cfg.RedisAuth.Enabled() {
		t.Error("expected auth enabled")
	}
}

func TestRedisAuth_Invalid(t *testing.T) {
	inputs := []string{
		`redis_auth: [only-one]`,
		`redis_auth: {user: a}`,
	}
	for _, in := range inputs {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q) expected error", in)
		}
	}
}

func TestLogFsync_Forms(t *testing.T) {
	tests := []struct {
		input    string
		wantMode FsyncMode
		wantStr  string
	}{
		{`log_fsync: auto`, FsyncAuto, "auto"},
		{`log_fsync: all`, FsyncAll, "all"},
		{`log_fsync: 1000`, FsyncInterval, "1000"},
		{`verbosity: 3`, FsyncAuto, "auto"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.LogFsync.Mode != tt.wantMode {
				t.Errorf("Mode = %v, want %v", cfg.LogFsync.Mode, tt.wantMode)
			}
			if cfg.LogFsync.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", cfg.LogFsync.String(), tt.wantStr)
			}
		})
	}

	if _, err := Parse([]byte(`log_fsync: sometimes`)); err == nil {
		t.Error("expected error for invalid log_fsync")
	}
}

func TestParse_NestedSections(t *testing.T) {
	data := []byte(`
pool:
  checkout_timeout: 250ms
  reconnect:
    max_tries: 5
pubsub:
  buffer_size: 16
  overflow_policy: drop
telemetry:
  metrics:
    enabled: false
  tracing:
    enabled: true
    endpoint: collector:4317
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Pool.CheckoutTimeout != 250*time.Millisecond {
		t.Errorf("CheckoutTimeout = %v", cfg.Pool.CheckoutTimeout)
	}
	if cfg.Pool.Reconnect.MaxTries != 5 {
		t.Errorf("MaxTries = %d", cfg.Pool.Reconnect.MaxTries)
	}
	if cfg.Pool.IOTimeout != DefaultIOTimeout {
		t.Errorf("IOTimeout default not applied: %v", cfg.Pool.IOTimeout)
	}
	if cfg.PubSub.BufferSize != 16 || cfg.PubSub.OverflowPolicy != OverflowDrop {
		t.Errorf("PubSub = %+v", cfg.PubSub)
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics disabled")
	}
	if !cfg.Telemetry.Tracing.Enabled || cfg.Telemetry.Tracing.Endpoint != "collector:4317" {
		t.Errorf("Tracing = %+v", cfg.Telemetry.Tracing)
	}
	if !cfg.Telemetry.Tracing.IsInsecure() {
		t.Error("expected insecure default")
	}
}
