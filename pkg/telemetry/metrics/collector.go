package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"mercator-hq/webdis/pkg/config"
)

// OtherLabel replaces label values once the cardinality cap is reached.
const OtherLabel = "other"

// Collector owns the gateway's Prometheus registry and metric families.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	httpMetrics    *HTTPMetrics
	commandMetrics *CommandMetrics
	poolMetrics    *PoolMetrics
	pubsubMetrics  *PubSubMetrics

	commandLabels *CardinalityLimiter
}

// NewCollector creates a collector registering into registry, or into a
// fresh registry when registry is nil.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.CommandDurationBuckets) == 0 {
		cfg.CommandDurationBuckets = config.DefaultCommandDurationBuckets
	}
	if cfg.MaxCommandLabels == 0 {
		cfg.MaxCommandLabels = config.DefaultMaxCommandLabels
	}

	c := &Collector{
		config:        cfg,
		registry:      registry,
		commandLabels: NewCardinalityLimiter(cfg.MaxCommandLabels),
	}

	c.httpMetrics = NewHTTPMetrics(cfg, registry)
	c.commandMetrics = NewCommandMetrics(cfg, registry)
	c.poolMetrics = NewPoolMetrics(cfg, registry)
	c.pubsubMetrics = NewPubSubMetrics(cfg, registry)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.IsEnabled()
}

// commandLabel caps the set of distinct command label values.
func (c *Collector) commandLabel(name string) string {
	if c.commandLabels.Allow(name) {
		return name
	}
	return OtherLabel
}

// RecordHTTPRequest records a completed HTTP request.
func (c *Collector) RecordHTTPRequest(method string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.httpMetrics.Record(method, status, duration)
}

// RecordCommand records a dispatched command.
//
// Parameters:
//   - name: upper-cased command name
//   - status: "ok", "error" (backend error reply), "exhausted" (no free
//     connection) or "unavailable" (transport failure after retry)
//   - duration: time from the first checkout to the reply
func (c *Collector) RecordCommand(name, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.commandMetrics.Record(c.commandLabel(name), status, duration)
}

// RecordRetry records a transparent retry after a transport failure.
func (c *Collector) RecordRetry(name string) {
	if !c.enabled() {
		return
	}
	c.commandMetrics.retriesTotal.WithLabelValues(c.commandLabel(name)).Inc()
}

// RecordACLDenied records a command refused by the ACL.
func (c *Collector) RecordACLDenied(name string) {
	if !c.enabled() {
		return
	}
	c.commandMetrics.aclDeniedTotal.WithLabelValues(c.commandLabel(name)).Inc()
}

// CardinalityLimiter bounds the number of distinct label values a metric
// may see.
type CardinalityLimiter struct {
	maxCardinality int64
	count          atomic.Int64
	current        *xsync.MapOf[string, struct{}]
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: int64(maxCardinality),
		current:        xsync.NewMapOf[string, struct{}](),
	}
}

// Allow reports whether labelSet may be used. Values already seen are always
// allowed; new values are admitted until the cap is reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	if _, ok := cl.current.Load(labelSet); ok {
		return true
	}
	if cl.count.Load() >= cl.maxCardinality {
		return false
	}
	if _, loaded := cl.current.LoadOrStore(labelSet, struct{}{}); !loaded {
		cl.count.Add(1)
	}
	return true
}

// Count returns the number of admitted values.
func (cl *CardinalityLimiter) Count() int {
	return int(cl.count.Load())
}
