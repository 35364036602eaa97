package config

import (
	"fmt"
	"net/netip"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "pool.io_timeout").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// collecting every problem found, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateBackend(cfg)...)
	errs = append(errs, validateHTTP(cfg)...)
	errs = append(errs, validateSSL(&cfg.SSL)...)
	errs = append(errs, validateACL(cfg.ACL)...)
	errs = append(errs, validateLogging(cfg)...)
	errs = append(errs, validatePool(&cfg.Pool)...)
	errs = append(errs, validatePubSub(&cfg.PubSub)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateBackend(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.RedisHost == "" {
		errs = append(errs, FieldError{Field: "redis_host", Message: "backend host is required"})
	}
	if !validPort(cfg.RedisPort) {
		errs = append(errs, FieldError{Field: "redis_port", Message: fmt.Sprintf("port %d out of range 1-65535", cfg.RedisPort)})
	}
	if cfg.Database < 0 {
		errs = append(errs, FieldError{Field: "database", Message: "database index must be non-negative"})
	}
	if cfg.RedisAuth.Username != "" && cfg.RedisAuth.Password == "" {
		errs = append(errs, FieldError{Field: "redis_auth", Message: "username given without password"})
	}

	return errs
}

func validateHTTP(cfg *Config) []FieldError {
	var errs []FieldError

	if !validPort(cfg.HTTPPort) {
		errs = append(errs, FieldError{Field: "http_port", Message: fmt.Sprintf("port %d out of range 1-65535", cfg.HTTPPort)})
	}
	if cfg.HTTPThreads < 1 {
		errs = append(errs, FieldError{Field: "http_threads", Message: "at least one worker is required"})
	}
	if cfg.HTTPThreads > 1024 {
		errs = append(errs, FieldError{Field: "http_threads", Message: "exceeds reasonable limit (1024)"})
	}
	if cfg.PoolSizePerThread < 1 {
		errs = append(errs, FieldError{Field: "pool_size_per_thread", Message: "pool size must be at least 1"})
	}
	if cfg.HTTPMaxRequestSize < 0 {
		errs = append(errs, FieldError{Field: "http_max_request_size", Message: "must be non-negative"})
	}
	if cfg.HTTPMaxURILength < 0 {
		errs = append(errs, FieldError{Field: "http_max_uri_length", Message: "must be non-negative"})
	}
	if cfg.DefaultRoot != "" && !strings.HasPrefix(cfg.DefaultRoot, "/") {
		errs = append(errs, FieldError{Field: "default_root", Message: "must start with /"})
	}
	switch cfg.JSONBinaryMode {
	case JSONBinaryBase64, JSONBinaryReplace:
	default:
		errs = append(errs, FieldError{
			Field:   "json_binary_mode",
			Message: fmt.Sprintf("invalid mode %q (must be %s or %s)", cfg.JSONBinaryMode, JSONBinaryBase64, JSONBinaryReplace),
		})
	}

	return errs
}

func validateSSL(cfg *SSLConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}
	if (cfg.ClientCert == "") != (cfg.ClientKey == "") {
		errs = append(errs, FieldError{Field: "ssl.client_cert", Message: "client_cert and client_key must be set together"})
	}
	if cfg.WatchCerts && cfg.ClientCert == "" {
		errs = append(errs, FieldError{Field: "ssl.watch_certs", Message: "requires client_cert and client_key"})
	}

	return errs
}

func validateACL(rules []ACLRule) []FieldError {
	var errs []FieldError

	for i, rule := range rules {
		prefix := fmt.Sprintf("acl[%d]", i)

		if rule.IP != "" {
			if _, err := ParseIPPredicate(rule.IP); err != nil {
				errs = append(errs, FieldError{Field: prefix + ".ip", Message: err.Error()})
			}
		}
		if rule.HTTPBasicAuth != "" && !strings.Contains(rule.HTTPBasicAuth, ":") {
			errs = append(errs, FieldError{Field: prefix + ".http_basic_auth", Message: `must be in "user:password" form`})
		}
		for _, name := range append(append([]string{}, rule.Enabled...), rule.Disabled...) {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, FieldError{Field: prefix, Message: "command names must not be empty"})
				break
			}
		}
	}

	return errs
}

// ParseIPPredicate parses an ACL ip value. A bare address becomes a
// single-host prefix.
func ParseIPPredicate(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", s, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid IP address %q: %w", s, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func validateLogging(cfg *Config) []FieldError {
	var errs []FieldError

	if v := cfg.LogVerbosity(); v < 0 || v > 8 {
		errs = append(errs, FieldError{Field: "verbosity", Message: fmt.Sprintf("verbosity %d out of range 0-8", v)})
	}
	if cfg.LogFsync.Mode != FsyncAuto && cfg.Logfile == "" {
		errs = append(errs, FieldError{Field: "log_fsync", Message: "requires logfile"})
	}

	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Telemetry.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Telemetry.Logging.Level),
		})
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Telemetry.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Telemetry.Logging.Format),
		})
	}

	return errs
}

func validatePool(cfg *PoolConfig) []FieldError {
	var errs []FieldError

	if cfg.CheckoutTimeout < 0 {
		errs = append(errs, FieldError{Field: "pool.checkout_timeout", Message: "must be positive"})
	}
	if cfg.ConnectTimeout < 0 {
		errs = append(errs, FieldError{Field: "pool.connect_timeout", Message: "must be positive"})
	}
	if cfg.IOTimeout < 0 {
		errs = append(errs, FieldError{Field: "pool.io_timeout", Message: "must be positive"})
	}
	if cfg.IdleCheckInterval < 0 {
		errs = append(errs, FieldError{Field: "pool.idle_check_interval", Message: "must be non-negative"})
	}
	if cfg.Reconnect.MaxInterval < cfg.Reconnect.InitialInterval {
		errs = append(errs, FieldError{Field: "pool.reconnect.max_interval", Message: "must not be less than initial_interval"})
	}
	if cfg.Reconnect.MaxTries > 20 {
		errs = append(errs, FieldError{Field: "pool.reconnect.max_tries", Message: "exceeds reasonable limit (20)"})
	}

	return errs
}

func validatePubSub(cfg *PubSubConfig) []FieldError {
	var errs []FieldError

	if cfg.BufferSize < 1 {
		errs = append(errs, FieldError{Field: "pubsub.buffer_size", Message: "must be at least 1"})
	}
	switch cfg.OverflowPolicy {
	case OverflowDisconnect, OverflowDrop:
	default:
		errs = append(errs, FieldError{
			Field:   "pubsub.overflow_policy",
			Message: fmt.Sprintf("invalid policy %q (must be %s or %s)", cfg.OverflowPolicy, OverflowDisconnect, OverflowDrop),
		})
	}
	if cfg.KeepaliveInterval < 0 {
		errs = append(errs, FieldError{Field: "pubsub.keepalive_interval", Message: "must be non-negative"})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server", Message: "timeouts must be non-negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "must be non-negative"})
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "certificate file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
	}
	if cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
		errs = append(errs, FieldError{Field: "server.tls.min_version", Message: fmt.Sprintf("invalid TLS version %q (must be 1.2 or 1.3)", cfg.TLS.MinVersion)})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	if cfg.Metrics.MaxCommandLabels < 1 {
		errs = append(errs, FieldError{Field: "telemetry.metrics.max_command_labels", Message: "must be at least 1"})
	}

	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}

	return errs
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
