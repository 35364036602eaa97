package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the webdis gateway.
//
// The top-level keys keep the names used by webdis.json so existing
// configuration files load unchanged. Sections added by this gateway
// (pool, pubsub, server, telemetry) are optional and fully defaulted.
type Config struct {
	// RedisHost is the backend store hostname or IP.
	// Default: "127.0.0.1"
	RedisHost string `yaml:"redis_host"`

	// RedisPort is the backend store TCP port.
	// Default: 6379
	RedisPort int `yaml:"redis_port"`

	// RedisAuth holds backend credentials. Either a password string or a
	// two-element [username, password] list.
	RedisAuth RedisAuth `yaml:"redis_auth"`

	// Database is the logical database selected on every new connection.
	// Default: 0
	Database int `yaml:"database"`

	// HTTPHost is the address the HTTP server binds to.
	// Default: "0.0.0.0"
	HTTPHost string `yaml:"http_host"`

	// HTTPPort is the port the HTTP server binds to.
	// Default: 7379
	HTTPPort int `yaml:"http_port"`

	// HTTPThreads is the number of workers. Each worker owns one pool.
	// Default: 4
	HTTPThreads int `yaml:"http_threads"`

	// PoolSizePerThread is the capacity of each worker's pool.
	// Default: 10
	PoolSizePerThread int `yaml:"pool_size_per_thread"`

	// HTTPMaxRequestSize caps POST and PUT bodies in bytes.
	// Default: 134217728 (128MiB)
	HTTPMaxRequestSize int64 `yaml:"http_max_request_size"`

	// HTTPMaxURILength caps the request URI in bytes.
	// Default: 8192
	HTTPMaxURILength int `yaml:"http_max_uri_length"`

	// Websockets enables the /.json, /.raw and /.msg WebSocket endpoints.
	// Default: false
	Websockets bool `yaml:"websockets"`

	// Daemonize, User and Group are accepted for compatibility. Process
	// supervision is left to the service manager.
	Daemonize bool   `yaml:"daemonize"`
	User      string `yaml:"user"`
	Group     string `yaml:"group"`

	// Pidfile is written on startup and removed on shutdown when set.
	Pidfile string `yaml:"pidfile"`

	// DefaultRoot is the command path served for "GET /",
	// e.g. "/GET/index.html".
	DefaultRoot string `yaml:"default_root"`

	// SSL configures TLS on the backend link.
	SSL SSLConfig `yaml:"ssl"`

	// ACL is the ordered access-control rule list. The first rule whose
	// predicates match a request decides it.
	ACL []ACLRule `yaml:"acl"`

	// Verbosity uses the webdis 0-8 scale. Nil means the default of 4.
	Verbosity *int `yaml:"verbosity"`

	// Logfile redirects logs to a file. Empty means stderr.
	Logfile string `yaml:"logfile"`

	// LogFsync controls when the log file is synced to disk.
	// Default: "auto"
	LogFsync LogFsync `yaml:"log_fsync"`

	// JSONBinaryMode selects how non-UTF-8 bulk replies render in JSON.
	// Options: "base64" (wrap as {"base64": "..."}), "replace" (U+FFFD)
	// Default: "base64"
	JSONBinaryMode string `yaml:"json_binary_mode"`

	// Pool contains connection pool tuning.
	Pool PoolConfig `yaml:"pool"`

	// PubSub contains subscription streaming tuning.
	PubSub PubSubConfig `yaml:"pubsub"`

	// Server contains HTTP server timeouts and listener TLS.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BackendAddress returns the backend "host:port".
func (c *Config) BackendAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ListenAddress returns the HTTP "host:port".
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// LogVerbosity returns the configured verbosity or the default.
func (c *Config) LogVerbosity() int {
	if c.Verbosity == nil {
		return DefaultVerbosity
	}
	return *c.Verbosity
}

// RedisAuth holds backend credentials.
type RedisAuth struct {
	Username string
	Password string
}

// Enabled reports whether AUTH must be sent on connect.
func (a RedisAuth) Enabled() bool {
	return a.Password != ""
}

// UnmarshalYAML accepts "password" or ["username", "password"].
func (a *RedisAuth) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*a = RedisAuth{}
			return nil
		}
		a.Username = ""
		a.Password = node.Value
		return nil
	case yaml.SequenceNode:
		var pair []string
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("redis_auth: expected [username, password], got %d elements", len(pair))
		}
		a.Username, a.Password = pair[0], pair[1]
		return nil
	default:
		return fmt.Errorf("redis_auth: expected string or [username, password]")
	}
}

// FsyncMode is the log file sync policy.
type FsyncMode uint8

const (
	// FsyncAuto leaves syncing to the operating system.
	FsyncAuto FsyncMode = iota
	// FsyncAll syncs after every log record.
	FsyncAll
	// FsyncInterval syncs on a fixed period.
	FsyncInterval
)

// LogFsync is parsed from "auto", "all" or an integer number of milliseconds.
type LogFsync struct {
	Mode     FsyncMode
	Interval time.Duration
}

// UnmarshalYAML accepts "auto", "all" or a millisecond count.
func (l *LogFsync) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("log_fsync: expected \"auto\", \"all\" or milliseconds")
	}
	return l.UnmarshalText([]byte(node.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LogFsync) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(strings.ToLower(string(text)))
	switch s {
	case "", "auto":
		*l = LogFsync{Mode: FsyncAuto}
	case "all":
		*l = LogFsync{Mode: FsyncAll}
	default:
		ms, err := strconv.Atoi(s)
		if err != nil || ms <= 0 {
			return fmt.Errorf("log_fsync: invalid value %q", string(text))
		}
		*l = LogFsync{Mode: FsyncInterval, Interval: time.Duration(ms) * time.Millisecond}
	}
	return nil
}

// String returns the value in configuration-file form.
func (l LogFsync) String() string {
	switch l.Mode {
	case FsyncAll:
		return "all"
	case FsyncInterval:
		return strconv.FormatInt(l.Interval.Milliseconds(), 10)
	default:
		return "auto"
	}
}

// SSLConfig configures TLS between the gateway and the backend.
type SSLConfig struct {
	// Enabled turns on TLS for backend connections.
	Enabled bool `yaml:"enabled"`

	// CACertBundle is a PEM file of trusted CAs.
	CACertBundle string `yaml:"ca_cert_bundle"`

	// PathToCerts is a directory of additional PEM CA certificates.
	PathToCerts string `yaml:"path_to_certs"`

	// ClientCert and ClientKey enable mutual TLS.
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`

	// RedisSNI overrides the server name sent during the handshake.
	// Defaults to redis_host.
	RedisSNI string `yaml:"redis_sni"`

	// WatchCerts reloads the client certificate when its files change.
	// Default: false
	WatchCerts bool `yaml:"watch_certs"`
}

// ACLRule is one access-control entry.
type ACLRule struct {
	// IP restricts the rule to a single address or CIDR block.
	IP string `yaml:"ip"`

	// HTTPBasicAuth restricts the rule to requests presenting these
	// credentials, in "user:password" form.
	HTTPBasicAuth string `yaml:"http_basic_auth"`

	// Enabled lists the only commands allowed. "*" matches every command.
	Enabled []string `yaml:"enabled"`

	// Disabled lists commands that are denied. "*" matches every command.
	Disabled []string `yaml:"disabled"`
}

// PoolConfig contains backend connection pool tuning.
type PoolConfig struct {
	// CheckoutTimeout is how long a request waits for a free connection
	// before failing with pool exhaustion.
	// Default: 5s
	CheckoutTimeout time.Duration `yaml:"checkout_timeout"`

	// ConnectTimeout bounds a single dial, including TLS and AUTH.
	// Default: 2s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// IOTimeout bounds writing one command and reading its reply.
	// Default: 5s
	IOTimeout time.Duration `yaml:"io_timeout"`

	// IdleCheckInterval is the period of the idle connection health sweep.
	// Zero disables the sweep.
	// Default: 30s
	IdleCheckInterval time.Duration `yaml:"idle_check_interval"`

	// Reconnect controls dial retries against an unreachable backend.
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig is the bounded backoff used when dialing.
type ReconnectConfig struct {
	// InitialInterval is the first retry delay.
	// Default: 50ms
	InitialInterval time.Duration `yaml:"initial_interval"`

	// MaxInterval caps the retry delay.
	// Default: 1s
	MaxInterval time.Duration `yaml:"max_interval"`

	// MaxTries is the total number of dial attempts.
	// Default: 3
	MaxTries uint `yaml:"max_tries"`
}

// PubSubConfig contains subscription streaming tuning.
type PubSubConfig struct {
	// BufferSize is the per-subscriber outgoing message buffer.
	// Default: 256
	BufferSize int `yaml:"buffer_size"`

	// OverflowPolicy is applied when a subscriber's buffer is full.
	// Options: "disconnect", "drop"
	// Default: "disconnect"
	OverflowPolicy string `yaml:"overflow_policy"`

	// KeepaliveInterval is the SSE comment heartbeat period.
	// Default: 15s
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Streaming handlers lift it for their own connection.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle period.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes caps request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS enables HTTPS on the listener.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains listener TLS configuration.
type TLSConfig struct {
	// Enabled controls whether the listener serves HTTPS.
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM files. Required when Enabled is true.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts TLS 1.2 cipher suites by name.
	CipherSuites []string `yaml:"cipher_suites"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level overrides the level derived from verbosity.
	// Options: "debug", "info", "warn", "error"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "webdis"
	Namespace string `yaml:"namespace"`

	// CommandDurationBuckets are histogram buckets in seconds.
	CommandDurationBuckets []float64 `yaml:"command_duration_buckets"`

	// MaxCommandLabels caps distinct command label values; the rest are
	// reported as "other".
	// Default: 200
	MaxCommandLabels int `yaml:"max_command_labels"`
}

// IsEnabled reports whether metrics are on, defaulting to true.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is one of "always", "never", "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "webdis"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure *bool `yaml:"insecure"`

	// ExportTimeout bounds one export call.
	// Default: 10s
	ExportTimeout time.Duration `yaml:"export_timeout"`
}

// IsInsecure reports whether the collector connection skips TLS.
func (t TracingConfig) IsInsecure() bool {
	return t.Insecure == nil || *t.Insecure
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path of the liveness probe.
	// Default: "/healthz"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path of the readiness probe.
	// Default: "/readyz"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path of the version endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout bounds a single readiness check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
