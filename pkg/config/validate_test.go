package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad backend port", func(c *Config) { c.RedisPort = 70000 }, "redis_port"},
		{"bad http port", func(c *Config) { c.HTTPPort = -1 }, "http_port"},
		{"negative threads", func(c *Config) { c.HTTPThreads = -2 }, "http_threads"},
		{"negative pool", func(c *Config) { c.PoolSizePerThread = -1 }, "pool_size_per_thread"},
		{"bad acl ip", func(c *Config) { c.ACL = []ACLRule{{IP: "10.0.0.0/99"}} }, "acl[0].ip"},
		{"bad acl auth", func(c *Config) { c.ACL = []ACLRule{{}, {HTTPBasicAuth: "nocolon"}} }, "acl[1].http_basic_auth"},
		{"empty acl command", func(c *Config) { c.ACL = []ACLRule{{Disabled: []string{" "}}} }, "acl[0]"},
		{"binary mode", func(c *Config) { c.JSONBinaryMode = "hex" }, "json_binary_mode"},
		{"overflow policy", func(c *Config) { c.PubSub.OverflowPolicy = "block" }, "pubsub.overflow_policy"},
		{"verbosity", func(c *Config) { v := 9; c.Verbosity = &v }, "verbosity"},
		{"fsync without logfile", func(c *Config) { c.LogFsync = LogFsync{Mode: FsyncAll} }, "log_fsync"},
		{"log format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"ssl half cert", func(c *Config) { c.SSL = SSLConfig{Enabled: true, ClientCert: "c.pem"} }, "ssl.client_cert"},
		{"listener tls", func(c *Config) { c.Server.TLS.Enabled = true }, "server.tls.cert_file"},
		{"sampler", func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" }, "telemetry.tracing.sampler"},
		{"default root", func(c *Config) { c.DefaultRoot = "GET/index.html" }, "default_root"},
		{"auth user without password", func(c *Config) { c.RedisAuth = RedisAuth{Username: "u"} }, "redis_auth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := ValidationError{Errors: []FieldError{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}}
	msg := err.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "a: x") || !strings.Contains(msg, "b: y") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestParseIPPredicate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.0.0.0/8", "10.0.0.0/8"},
		{"10.1.2.3/8", "10.0.0.0/8"},
		{"192.168.1.1", "192.168.1.1/32"},
		{"::1", "::1/128"},
		{"::ffff:127.0.0.1", "127.0.0.1/32"},
	}
	for _, tt := range tests {
		p, err := ParseIPPredicate(tt.in)
		if err != nil {
			t.Errorf("ParseIPPredicate(%q) error = %v", tt.in, err)
			continue
		}
		if p.String() != tt.want {
			t.Errorf("ParseIPPredicate(%q) = %s, want %s", tt.in, p, tt.want)
		}
	}

	if _, err := ParseIPPredicate("not-an-ip"); err == nil {
		t.Error("expected error for invalid address")
	}
}
