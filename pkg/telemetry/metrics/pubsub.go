package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdis/pkg/config"
)

// PubSubMetrics tracks subscription streams.
//
// Metrics:
//   - webdis_pubsub_subscriptions_active: open subscriptions by transport
//   - webdis_pubsub_messages_total: messages forwarded by transport
//   - webdis_pubsub_overflow_total: buffer overflows by policy
type PubSubMetrics struct {
	active   *prometheus.GaugeVec
	messages *prometheus.CounterVec
	overflow *prometheus.CounterVec
}

// NewPubSubMetrics creates and registers pub/sub metrics.
func NewPubSubMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PubSubMetrics {
	m := &PubSubMetrics{
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pubsub",
				Name:      "subscriptions_active",
				Help:      "Number of open subscriptions",
			},
			[]string{"transport"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pubsub",
				Name:      "messages_total",
				Help:      "Total number of messages forwarded to subscribers",
			},
			[]string{"transport"},
		),
		overflow: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pubsub",
				Name:      "overflow_total",
				Help:      "Total number of subscriber buffer overflows",
			},
			[]string{"policy"},
		),
	}

	registry.MustRegister(m.active, m.messages, m.overflow)
	return m
}

// SubscriptionOpened increments the active subscription gauge.
func (c *Collector) SubscriptionOpened(transport string) {
	if !c.enabled() {
		return
	}
	c.pubsubMetrics.active.WithLabelValues(transport).Inc()
}

// SubscriptionClosed decrements the active subscription gauge.
func (c *Collector) SubscriptionClosed(transport string) {
	if !c.enabled() {
		return
	}
	c.pubsubMetrics.active.WithLabelValues(transport).Dec()
}

// RecordMessage records one message delivered to a subscriber.
func (c *Collector) RecordMessage(transport string) {
	if !c.enabled() {
		return
	}
	c.pubsubMetrics.messages.WithLabelValues(transport).Inc()
}

// RecordOverflow records a full subscriber buffer.
func (c *Collector) RecordOverflow(policy string) {
	if !c.enabled() {
		return
	}
	c.pubsubMetrics.overflow.WithLabelValues(policy).Inc()
}
