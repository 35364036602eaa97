package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdis/pkg/config"
)

// CommandMetrics tracks backend command execution.
//
// Metrics:
//   - webdis_commands_total: commands by name and status
//   - webdis_command_duration_seconds: checkout-to-reply latency
//   - webdis_command_retries_total: transparent retries after transport failure
//   - webdis_acl_denied_total: commands refused by the ACL
type CommandMetrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	aclDeniedTotal  *prometheus.CounterVec
}

// NewCommandMetrics creates and registers command metrics.
func NewCommandMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CommandMetrics {
	m := &CommandMetrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "commands_total",
				Help:      "Total number of backend commands dispatched",
			},
			[]string{"command", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "command_duration_seconds",
				Help:      "Backend command latency in seconds",
				Buckets:   cfg.CommandDurationBuckets,
			},
			[]string{"command"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "command_retries_total",
				Help:      "Total number of commands retried after a transport failure",
			},
			[]string{"command"},
		),
		aclDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "acl_denied_total",
				Help:      "Total number of commands denied by ACL rules",
			},
			[]string{"command"},
		),
	}

	registry.MustRegister(m.commandsTotal, m.commandDuration, m.retriesTotal, m.aclDeniedTotal)
	return m
}

// Record records one command outcome.
func (m *CommandMetrics) Record(command, status string, duration time.Duration) {
	m.commandsTotal.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}
