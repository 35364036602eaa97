package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdis/pkg/config"
)

// PoolMetrics tracks the backend connection pools.
//
// Metrics:
//   - webdis_pool_connections_in_use: checked-out connections per pool
//   - webdis_pool_connections_open: open connections per pool
//   - webdis_pool_checkout_wait_seconds: time spent waiting for a slot
//   - webdis_pool_exhausted_total: checkouts that timed out
//   - webdis_pool_dials_total: dial attempts by result
//   - webdis_pool_connections_discarded_total: connections closed by reason
type PoolMetrics struct {
	inUse        *prometheus.GaugeVec
	open         *prometheus.GaugeVec
	checkoutWait *prometheus.HistogramVec
	exhausted    *prometheus.CounterVec
	dials        *prometheus.CounterVec
	discarded    *prometheus.CounterVec
}

// NewPoolMetrics creates and registers pool metrics.
func NewPoolMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PoolMetrics {
	m := &PoolMetrics{
		inUse: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pool",
				Name:      "connections_in_use",
				Help:      "Number of connections currently checked out",
			},
			[]string{"pool"},
		),
		open: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pool",
				Name:      "connections_open",
				Help:      "Number of open backend connections",
			},
			[]string{"pool"},
		),
		checkoutWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pool",
				Name:      "checkout_wait_seconds",
				Help:      "Time spent waiting for a pooled connection",
				Buckets:   cfg.CommandDurationBuckets,
			},
			[]string{"pool"},
		),
		exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pool",
				Name:      "exhausted_total",
				Help:      "Total number of checkouts that timed out",
			},
			[]string{"pool"},
		),
		dials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pool",
				Name:      "dials_total",
				Help:      "Total number of backend dial attempts",
			},
			[]string{"result"},
		),
		discarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pool",
				Name:      "connections_discarded_total",
				Help:      "Total number of backend connections closed",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(m.inUse, m.open, m.checkoutWait, m.exhausted, m.dials, m.discarded)
	return m
}

// SetPoolUsage publishes in-use and open connection counts for a pool.
func (c *Collector) SetPoolUsage(pool, inUse, open int) {
	if !c.enabled() {
		return
	}
	label := strconv.Itoa(pool)
	c.poolMetrics.inUse.WithLabelValues(label).Set(float64(inUse))
	c.poolMetrics.open.WithLabelValues(label).Set(float64(open))
}

// RecordCheckoutWait records how long a checkout waited for a slot.
func (c *Collector) RecordCheckoutWait(pool int, wait time.Duration) {
	if !c.enabled() {
		return
	}
	c.poolMetrics.checkoutWait.WithLabelValues(strconv.Itoa(pool)).Observe(wait.Seconds())
}

// RecordPoolExhausted records a checkout timeout.
func (c *Collector) RecordPoolExhausted(pool int) {
	if !c.enabled() {
		return
	}
	c.poolMetrics.exhausted.WithLabelValues(strconv.Itoa(pool)).Inc()
}

// RecordDial records a dial attempt; result is "ok" or "error".
func (c *Collector) RecordDial(result string) {
	if !c.enabled() {
		return
	}
	c.poolMetrics.dials.WithLabelValues(result).Inc()
}

// RecordDiscard records a connection being closed; reason is "broken",
// "unhealthy" or "shutdown".
func (c *Collector) RecordDiscard(reason string) {
	if !c.enabled() {
		return
	}
	c.poolMetrics.discarded.WithLabelValues(reason).Inc()
}
