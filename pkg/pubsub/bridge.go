// Package pubsub bridges backend publish/subscribe channels to streaming
// clients.
//
// A Subscription owns one dedicated backend connection that is never drawn
// from the command pool. Backend deliveries are turned into Events and
// queued on a bounded per-subscriber buffer; transports (SSE streams,
// WebSocket sessions) consume that queue and serialize events to their own
// wire format, so nothing in this package knows about HTTP.
//
// A subscriber that falls behind either loses its subscription
// (OverflowDisconnect, the default) or loses individual messages
// (OverflowDrop). The backend connection is never blocked by a slow
// consumer.
package pubsub

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"

	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/pool"
	"mercator-hq/webdis/pkg/telemetry/metrics"
	"mercator-hq/webdis/pkg/telemetry/tracing"
)

var (
	// ErrSlowConsumer terminates a subscription whose buffer overflowed
	// under OverflowDisconnect.
	ErrSlowConsumer = errors.New("subscriber too slow, buffer overflow")

	// ErrBridgeClosed is returned by Subscribe after Close.
	ErrBridgeClosed = errors.New("pub/sub bridge closed")

	// ErrNoChannels is returned when Subscribe is called without channels.
	ErrNoChannels = errors.New("no channels to subscribe")
)

// OverflowPolicy decides what happens when a subscriber's buffer is full.
type OverflowPolicy string

const (
	OverflowDisconnect OverflowPolicy = config.OverflowDisconnect
	OverflowDrop       OverflowPolicy = config.OverflowDrop
)

// Options configures a Bridge.
type Options struct {
	Address   string
	Username  string
	Password  string
	Database  int
	TLSConfig *tls.Config

	DialTimeout time.Duration

	BufferSize int
	Overflow   OverflowPolicy

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// Bridge creates and tracks subscriptions.
type Bridge struct {
	opts   Options
	subs   *xsync.MapOf[string, *Subscription]
	closed atomic.Bool
}

// NewBridge builds a bridge from the gateway configuration. tlsConfig is
// the same backend TLS config the command pool uses.
func NewBridge(cfg *config.Config, tlsConfig *tls.Config, m *metrics.Collector, t *tracing.Tracer) *Bridge {
	return NewBridgeWithOptions(Options{
		Address:     cfg.BackendAddress(),
		Username:    cfg.RedisAuth.Username,
		Password:    cfg.RedisAuth.Password,
		Database:    cfg.Database,
		TLSConfig:   tlsConfig,
		DialTimeout: cfg.Pool.ConnectTimeout,
		BufferSize:  cfg.PubSub.BufferSize,
		Overflow:    OverflowPolicy(cfg.PubSub.OverflowPolicy),
		Metrics:     m,
		Tracer:      t,
	})
}

// NewBridgeWithOptions builds a bridge from explicit options.
func NewBridgeWithOptions(opts Options) *Bridge {
	if opts.BufferSize <= 0 {
		opts.BufferSize = config.DefaultPubSubBufferSize
	}
	if opts.Overflow == "" {
		opts.Overflow = OverflowDisconnect
	}
	return &Bridge{
		opts: opts,
		subs: xsync.NewMapOf[string, *Subscription](),
	}
}

// Request describes one subscribe call.
type Request struct {
	Channels []string
	// Pattern selects PSUBSCRIBE semantics.
	Pattern bool
	// Transport labels metrics, e.g. "sse" or "websocket".
	Transport string
}

// Subscribe opens a dedicated backend connection, subscribes to the
// requested channels and waits for every acknowledgment. On success the
// returned Subscription is in StateSubscribed and its Events already hold
// one EventSubscribed per channel.
func (b *Bridge) Subscribe(ctx context.Context, req Request) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBridgeClosed
	}
	if len(req.Channels) == 0 {
		return nil, ErrNoChannels
	}

	ctx, span := b.opts.Tracer.Start(ctx, "pubsub.subscribe")
	defer span.End()
	tracing.SetSubscriptionAttributes(span, req.Channels, req.Pattern)

	client := redis.NewClient(&redis.Options{
		Addr:                  b.opts.Address,
		Username:              b.opts.Username,
		Password:              b.opts.Password,
		DB:                    b.opts.Database,
		TLSConfig:             b.opts.TLSConfig,
		Protocol:              2,
		DialTimeout:           b.opts.DialTimeout,
		ReadTimeout:           -1,
		PoolSize:              1,
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})

	s := newSubscription(uuid.NewString(), req, client, b)
	if err := s.start(ctx); err != nil {
		tracing.SetError(span, err)
		slog.Warn("subscribe failed",
			"channels", req.Channels,
			"pattern", req.Pattern,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", pool.ErrBackendUnavailable, err)
	}

	b.subs.Store(s.id, s)
	b.opts.Metrics.SubscriptionOpened(req.Transport)
	go s.run()
	slog.Debug("subscription opened",
		"subscription_id", s.id,
		"channels", req.Channels,
		"pattern", req.Pattern,
		"transport", req.Transport,
	)

	// Close may have raced with us; make sure nothing leaks.
	if b.closed.Load() {
		s.Close()
		return nil, ErrBridgeClosed
	}
	return s, nil
}

// Active returns the number of open subscriptions.
func (b *Bridge) Active() int {
	return b.subs.Size()
}

// Close terminates every subscription and refuses new ones.
func (b *Bridge) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.subs.Range(func(_ string, s *Subscription) bool {
		s.Close()
		return true
	})
}

func (b *Bridge) forget(s *Subscription) {
	if _, ok := b.subs.LoadAndDelete(s.id); ok {
		b.opts.Metrics.SubscriptionClosed(s.transport)
	}
}
