package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "webdis.yaml", `
redis_host: cache.internal
http_port: 8080
acl:
  - ip: 10.0.0.0/8
    disabled: [FLUSHALL]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RedisHost != "cache.internal" || cfg.HTTPPort != 8080 {
		t.Errorf("got %s / %d", cfg.RedisHost, cfg.HTTPPort)
	}
	if len(cfg.ACL) != 1 || cfg.ACL[0].Disabled[0] != "FLUSHALL" {
		t.Errorf("ACL = %+v", cfg.ACL)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("LoadConfig() error = %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "bad.yaml", "redis_port: [unclosed")
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("LoadConfig() error = %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "webdis.json", `{"http_threads": -1}`)
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "http_threads") {
		t.Errorf("LoadConfig() error = %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "webdis.json", `{"redis_host": "file-host", "http_port": 7379}`)

	t.Setenv("WEBDIS_REDIS_HOST", "env-host")
	t.Setenv("WEBDIS_REDIS_AUTH", "pw")
	t.Setenv("WEBDIS_POOL_SIZE_PER_THREAD", "32")
	t.Setenv("WEBDIS_WEBSOCKETS", "true")
	t.Setenv("WEBDIS_POOL_CHECKOUT_TIMEOUT", "750ms")
	t.Setenv("WEBDIS_VERBOSITY", "7")
	t.Setenv("WEBDIS_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.RedisHost != "env-host" {
		t.Errorf("RedisHost = %q, want env-host", cfg.RedisHost)
	}
	if cfg.RedisAuth.Password != "pw" {
		t.Errorf("RedisAuth = %+v", cfg.RedisAuth)
	}
	if cfg.PoolSizePerThread != 32 {
		t.Errorf("PoolSizePerThread = %d", cfg.PoolSizePerThread)
	}
	if !cfg.Websockets {
		t.Error("expected websockets enabled from env")
	}
	if cfg.Pool.CheckoutTimeout != 750*time.Millisecond {
		t.Errorf("CheckoutTimeout = %v", cfg.Pool.CheckoutTimeout)
	}
	if cfg.LogVerbosity() != 7 {
		t.Errorf("LogVerbosity() = %d", cfg.LogVerbosity())
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics disabled from env")
	}
	if cfg.HTTPPort != 7379 {
		t.Errorf("HTTPPort = %d, file value should survive", cfg.HTTPPort)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValue(t *testing.T) {
	path := writeConfig(t, "webdis.json", `{}`)
	t.Setenv("WEBDIS_HTTP_PORT", "not-a-number")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Error("expected error for malformed env override")
	}
}
