package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override variable.
const EnvPrefix = "WEBDIS_"

// LoadConfig loads configuration from a YAML or JSON file at path, applies
// defaults and validates it. JSON files load because JSON is a subset of YAML,
// so a stock webdis.json works as-is.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes configuration bytes and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a file and applies
// WEBDIS_* environment variable overrides. Environment variables always take
// precedence over the file.
//
// The loading sequence is:
// 1. Load YAML/JSON from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// envOverrides lists the settings that can be overridden from the
// environment. Nil pointers mean the variable was not set.
type envOverrides struct {
	RedisHost          *string        `env:"REDIS_HOST"`
	RedisPort          *int           `env:"REDIS_PORT"`
	RedisPassword      *string        `env:"REDIS_AUTH"`
	Database           *int           `env:"DATABASE"`
	HTTPHost           *string        `env:"HTTP_HOST"`
	HTTPPort           *int           `env:"HTTP_PORT"`
	HTTPThreads        *int           `env:"HTTP_THREADS"`
	PoolSizePerThread  *int           `env:"POOL_SIZE_PER_THREAD"`
	HTTPMaxRequestSize *int64         `env:"HTTP_MAX_REQUEST_SIZE"`
	Websockets         *bool          `env:"WEBSOCKETS"`
	Verbosity          *int           `env:"VERBOSITY"`
	Logfile            *string        `env:"LOGFILE"`
	LogFsync           *string        `env:"LOG_FSYNC"`
	SSLEnabled         *bool          `env:"SSL_ENABLED"`
	RedisSNI           *string        `env:"SSL_REDIS_SNI"`
	CheckoutTimeout    *time.Duration `env:"POOL_CHECKOUT_TIMEOUT"`
	IOTimeout          *time.Duration `env:"POOL_IO_TIMEOUT"`
	PubSubBufferSize   *int           `env:"PUBSUB_BUFFER_SIZE"`
	PubSubOverflow     *string        `env:"PUBSUB_OVERFLOW_POLICY"`
	LogLevel           *string        `env:"LOG_LEVEL"`
	LogFormat          *string        `env:"LOG_FORMAT"`
	MetricsEnabled     *bool          `env:"METRICS_ENABLED"`
	TracingEnabled     *bool          `env:"TRACING_ENABLED"`
	TracingEndpoint    *string        `env:"TRACING_ENDPOINT"`
}

// ApplyEnvOverrides applies WEBDIS_* environment variables to cfg.
func ApplyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	setIf(&cfg.RedisHost, o.RedisHost)
	setIf(&cfg.RedisPort, o.RedisPort)
	setIf(&cfg.Database, o.Database)
	setIf(&cfg.HTTPHost, o.HTTPHost)
	setIf(&cfg.HTTPPort, o.HTTPPort)
	setIf(&cfg.HTTPThreads, o.HTTPThreads)
	setIf(&cfg.PoolSizePerThread, o.PoolSizePerThread)
	setIf(&cfg.HTTPMaxRequestSize, o.HTTPMaxRequestSize)
	setIf(&cfg.Websockets, o.Websockets)
	setIf(&cfg.Logfile, o.Logfile)
	setIf(&cfg.SSL.Enabled, o.SSLEnabled)
	setIf(&cfg.SSL.RedisSNI, o.RedisSNI)
	setIf(&cfg.Pool.CheckoutTimeout, o.CheckoutTimeout)
	setIf(&cfg.Pool.IOTimeout, o.IOTimeout)
	setIf(&cfg.PubSub.BufferSize, o.PubSubBufferSize)
	setIf(&cfg.PubSub.OverflowPolicy, o.PubSubOverflow)
	setIf(&cfg.Telemetry.Logging.Level, o.LogLevel)
	setIf(&cfg.Telemetry.Logging.Format, o.LogFormat)
	setIf(&cfg.Telemetry.Tracing.Enabled, o.TracingEnabled)
	setIf(&cfg.Telemetry.Tracing.Endpoint, o.TracingEndpoint)

	if o.RedisPassword != nil {
		cfg.RedisAuth = RedisAuth{Password: *o.RedisPassword}
	}
	if o.LogFsync != nil {
		if err := cfg.LogFsync.UnmarshalText([]byte(*o.LogFsync)); err != nil {
			return fmt.Errorf("invalid %sLOG_FSYNC: %w", EnvPrefix, err)
		}
	}
	if o.Verbosity != nil {
		cfg.Verbosity = o.Verbosity
	}
	if o.MetricsEnabled != nil {
		cfg.Telemetry.Metrics.Enabled = o.MetricsEnabled
	}

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
