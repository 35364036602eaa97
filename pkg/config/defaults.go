package config

import "time"

// Default values for configuration fields.
const (
	// Backend defaults
	DefaultRedisHost = "127.0.0.1"
	DefaultRedisPort = 6379

	// HTTP defaults
	DefaultHTTPHost           = "0.0.0.0"
	DefaultHTTPPort           = 7379
	DefaultHTTPThreads        = 4
	DefaultPoolSizePerThread  = 10
	DefaultHTTPMaxRequestSize = int64(128 << 20)
	DefaultHTTPMaxURILength   = 8192

	// Logging defaults
	DefaultVerbosity     = 4
	DefaultLoggingFormat = "text"

	// Encoding defaults
	DefaultJSONBinaryMode = JSONBinaryBase64

	// Pool defaults
	DefaultCheckoutTimeout          = 5 * time.Second
	DefaultConnectTimeout           = 2 * time.Second
	DefaultIOTimeout                = 5 * time.Second
	DefaultIdleCheckInterval        = 30 * time.Second
	DefaultReconnectInitialInterval = 50 * time.Millisecond
	DefaultReconnectMaxInterval     = time.Second
	DefaultReconnectMaxTries        = uint(3)

	// Pub/sub defaults
	DefaultPubSubBufferSize        = 256
	DefaultPubSubOverflowPolicy    = OverflowDisconnect
	DefaultPubSubKeepaliveInterval = 15 * time.Second

	// Server defaults
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultTLSMinVersion   = "1.2"

	// Telemetry defaults
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "webdis"
	DefaultMaxCommandLabels   = 200
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "webdis"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultLivenessPath       = "/healthz"
	DefaultReadinessPath      = "/readyz"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 2 * time.Second
)

// Enumerated option values.
const (
	JSONBinaryBase64  = "base64"
	JSONBinaryReplace = "replace"

	OverflowDisconnect = "disconnect"
	OverflowDrop       = "drop"
)

// DefaultCommandDurationBuckets covers sub-millisecond cache hits up to
// slow scans.
var DefaultCommandDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

// ApplyDefaults fills zero-valued fields with their defaults.
// It is idempotent and never overrides values that are already set.
func ApplyDefaults(cfg *Config) {
	if cfg.RedisHost == "" {
		cfg.RedisHost = DefaultRedisHost
	}
	if cfg.RedisPort == 0 {
		cfg.RedisPort = DefaultRedisPort
	}
	if cfg.HTTPHost == "" {
		cfg.HTTPHost = DefaultHTTPHost
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.HTTPThreads == 0 {
		cfg.HTTPThreads = DefaultHTTPThreads
	}
	if cfg.PoolSizePerThread == 0 {
		cfg.PoolSizePerThread = DefaultPoolSizePerThread
	}
	if cfg.HTTPMaxRequestSize == 0 {
		cfg.HTTPMaxRequestSize = DefaultHTTPMaxRequestSize
	}
	if cfg.HTTPMaxURILength == 0 {
		cfg.HTTPMaxURILength = DefaultHTTPMaxURILength
	}
	if cfg.JSONBinaryMode == "" {
		cfg.JSONBinaryMode = DefaultJSONBinaryMode
	}

	applyPoolDefaults(&cfg.Pool)
	applyPubSubDefaults(&cfg.PubSub)
	applyServerDefaults(&cfg.Server)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyPoolDefaults(p *PoolConfig) {
	if p.CheckoutTimeout == 0 {
		p.CheckoutTimeout = DefaultCheckoutTimeout
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = DefaultConnectTimeout
	}
	if p.IOTimeout == 0 {
		p.IOTimeout = DefaultIOTimeout
	}
	if p.IdleCheckInterval == 0 {
		p.IdleCheckInterval = DefaultIdleCheckInterval
	}
	if p.Reconnect.InitialInterval == 0 {
		p.Reconnect.InitialInterval = DefaultReconnectInitialInterval
	}
	if p.Reconnect.MaxInterval == 0 {
		p.Reconnect.MaxInterval = DefaultReconnectMaxInterval
	}
	if p.Reconnect.MaxTries == 0 {
		p.Reconnect.MaxTries = DefaultReconnectMaxTries
	}
}

func applyPubSubDefaults(p *PubSubConfig) {
	if p.BufferSize == 0 {
		p.BufferSize = DefaultPubSubBufferSize
	}
	if p.OverflowPolicy == "" {
		p.OverflowPolicy = DefaultPubSubOverflowPolicy
	}
	if p.KeepaliveInterval == 0 {
		p.KeepaliveInterval = DefaultPubSubKeepaliveInterval
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.TLS.MinVersion == "" {
		s.TLS.MinVersion = DefaultTLSMinVersion
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.CommandDurationBuckets) == 0 {
		t.Metrics.CommandDurationBuckets = DefaultCommandDurationBuckets
	}
	if t.Metrics.MaxCommandLabels == 0 {
		t.Metrics.MaxCommandLabels = DefaultMaxCommandLabels
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.ExportTimeout == 0 {
		t.Tracing.ExportTimeout = DefaultTracingTimeout
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
