package pool

import (
	"context"
	"crypto/tls"
	"sync/atomic"

	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/telemetry/metrics"
)

// Manager owns one Pool per worker. Requests are spread across pools
// round-robin; a request uses the pool it was assigned for every backend
// call it makes, including the retry.
type Manager struct {
	pools []*Pool
	next  atomic.Uint64
}

// NewManager builds http_threads pools of pool_size_per_thread each.
// tlsConfig is nil when the backend link is plain TCP.
func NewManager(cfg *config.Config, tlsConfig *tls.Config, m *metrics.Collector) *Manager {
	dialer := &Dialer{
		Address:        cfg.BackendAddress(),
		TLSConfig:      tlsConfig,
		Username:       cfg.RedisAuth.Username,
		Password:       cfg.RedisAuth.Password,
		Database:       cfg.Database,
		ConnectTimeout: cfg.Pool.ConnectTimeout,
		IOTimeout:      cfg.Pool.IOTimeout,
	}

	workers := cfg.HTTPThreads
	if workers <= 0 {
		workers = 1
	}

	mgr := &Manager{pools: make([]*Pool, workers)}
	for i := range mgr.pools {
		mgr.pools[i] = New(i, dialer, Options{
			Size:            cfg.PoolSizePerThread,
			CheckoutTimeout: cfg.Pool.CheckoutTimeout,
			Reconnect:       cfg.Pool.Reconnect,
			Metrics:         m,
		})
	}
	return mgr
}

// NewManagerFromPools wraps existing pools.
func NewManagerFromPools(pools ...*Pool) *Manager {
	return &Manager{pools: pools}
}

// Next returns the pool for a new request.
func (m *Manager) Next() *Pool {
	n := m.next.Add(1) - 1
	return m.pools[n%uint64(len(m.pools))]
}

// Pools returns every pool.
func (m *Manager) Pools() []*Pool { return m.pools }

// Stats sums Stats across pools.
func (m *Manager) Stats() Stats {
	var total Stats
	for _, p := range m.pools {
		s := p.Stats()
		total.Capacity += s.Capacity
		total.InUse += s.InUse
		total.Idle += s.Idle
		total.Open += s.Open
	}
	return total
}

// SweepIdle runs SweepIdle on every pool and returns the total discarded.
func (m *Manager) SweepIdle(ctx context.Context) int {
	n := 0
	for _, p := range m.pools {
		n += p.SweepIdle(ctx)
	}
	return n
}

// Close closes every pool.
func (m *Manager) Close() {
	for _, p := range m.pools {
		p.Close()
	}
}
