package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/telemetry/metrics"
)

// Options configures a Pool.
type Options struct {
	// Size is the maximum number of connections checked out at once.
	Size int

	// CheckoutTimeout bounds how long Checkout waits for a free slot.
	// Zero waits until ctx is done.
	CheckoutTimeout time.Duration

	// Reconnect is the dial retry policy.
	Reconnect config.ReconnectConfig

	Metrics *metrics.Collector
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Capacity int
	InUse    int
	Idle     int
	Open     int
}

// Pool is a fixed-capacity set of backend connections.
//
// Capacity is enforced by a semaphore: a slot is taken before a connection
// is handed out and released on Checkin, so at most Size connections are
// ever InUse. Idle connections are reused LIFO; a slot with no idle
// connection behind it dials a fresh one.
type Pool struct {
	id      int
	dialer  *Dialer
	opts    Options
	metrics *metrics.Collector

	slots chan struct{}

	mu     sync.Mutex
	idle   []*Conn
	open   int
	closed bool
}

// New creates a pool. No connections are opened until the first Checkout.
func New(id int, dialer *Dialer, opts Options) *Pool {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	return &Pool{
		id:      id,
		dialer:  dialer,
		opts:    opts,
		metrics: opts.Metrics,
		slots:   make(chan struct{}, opts.Size),
		idle:    make([]*Conn, 0, opts.Size),
	}
}

// ID returns the pool's index within its Manager.
func (p *Pool) ID() int { return p.id }

// Checkout returns a connection in StateInUse. It fails with
// ErrPoolExhausted when no slot frees up within the checkout timeout and
// with ErrBackendUnavailable when a new connection cannot be dialed.
func (p *Pool) Checkout(ctx context.Context) (*Conn, error) {
	return p.checkout(ctx, false)
}

// CheckoutFresh is Checkout without reusing an idle connection: the slot
// is always backed by a newly dialed one. Idle connections may share the
// fault that broke the previous attempt, so retries use this.
func (p *Pool) CheckoutFresh(ctx context.Context) (*Conn, error) {
	return p.checkout(ctx, true)
}

func (p *Pool) checkout(ctx context.Context, fresh bool) (*Conn, error) {
	start := time.Now()

	waitCtx := ctx
	if p.opts.CheckoutTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.opts.CheckoutTimeout)
		defer cancel()
	}

	select {
	case p.slots <- struct{}{}:
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.metrics.RecordPoolExhausted(p.id)
		return nil, fmt.Errorf("%w after %s", ErrPoolExhausted, p.opts.CheckoutTimeout)
	}
	p.metrics.RecordCheckoutWait(p.id, time.Since(start))

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 && !fresh {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		c.setState(StateInUse)
		p.publishUsage()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.dial(waitCtx)
	if err != nil {
		<-p.slots
		p.publishUsage()
		return nil, err
	}

	p.mu.Lock()
	p.open++
	p.mu.Unlock()

	c.setState(StateInUse)
	p.publishUsage()
	return c, nil
}

// dial opens a connection, retrying with exponential backoff up to the
// configured number of tries. Handshake rejections are not retried.
func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	rc := p.opts.Reconnect
	b := backoff.NewExponentialBackOff()
	if rc.InitialInterval > 0 {
		b.InitialInterval = rc.InitialInterval
	}
	if rc.MaxInterval > 0 {
		b.MaxInterval = rc.MaxInterval
	}

	retryOpts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if rc.MaxTries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(rc.MaxTries))
	}

	c, err := backoff.Retry(ctx, func() (*Conn, error) {
		c, err := p.dialer.Dial(ctx)
		if err != nil {
			p.metrics.RecordDial("error")
			slog.Debug("backend dial failed",
				"pool", p.id,
				"address", p.dialer.Address,
				"error", err,
			)
			var hs *HandshakeError
			if errors.As(err, &hs) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		p.metrics.RecordDial("ok")
		return c, nil
	}, retryOpts...)
	if err != nil {
		slog.Warn("backend unavailable",
			"pool", p.id,
			"address", p.dialer.Address,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	return c, nil
}

// Checkin returns a connection taken with Checkout. A TransportFailure
// outcome, or a connection already marked Broken, is closed and its slot
// freed; the replacement is dialed lazily by a later Checkout.
func (p *Pool) Checkin(c *Conn, outcome Outcome) {
	if c == nil {
		return
	}
	defer func() {
		<-p.slots
		p.publishUsage()
	}()

	if outcome == TransportFailure || c.State() == StateBroken {
		p.discard(c, "broken")
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.discard(c, "shutdown")
		return
	}
	c.setState(StateIdle)
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

func (p *Pool) discard(c *Conn, reason string) {
	_ = c.Close()
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
	p.metrics.RecordDiscard(reason)
}

// SweepIdle pings idle connections and discards those that fail. It only
// takes slots that are free right now, so it never delays a request.
// It returns the number of connections discarded.
func (p *Pool) SweepIdle(ctx context.Context) int {
	p.mu.Lock()
	candidates := len(p.idle)
	p.mu.Unlock()

	discarded := 0
	for i := 0; i < candidates; i++ {
		select {
		case p.slots <- struct{}{}:
		default:
			return discarded
		}

		p.mu.Lock()
		if p.closed || len(p.idle) == 0 {
			p.mu.Unlock()
			<-p.slots
			return discarded
		}
		// Oldest first; recently used connections sit at the end.
		c := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()

		c.setState(StateInUse)
		v, err := c.Do(ctx, "PING", nil)
		if err != nil || v.IsError() {
			slog.Debug("discarding unhealthy idle connection", "pool", p.id, "error", err)
			p.discard(c, "unhealthy")
			discarded++
			<-p.slots
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.discard(c, "shutdown")
			<-p.slots
			return discarded
		}
		c.setState(StateIdle)
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		<-p.slots
	}

	p.publishUsage()
	return discarded
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity: cap(p.slots),
		InUse:    len(p.slots),
		Idle:     len(p.idle),
		Open:     p.open,
	}
}

// Close closes idle connections and fails future checkouts. Connections
// still checked out are closed when they are checked in.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		p.discard(c, "shutdown")
	}
	p.publishUsage()
}

func (p *Pool) publishUsage() {
	s := p.Stats()
	p.metrics.SetPoolUsage(p.id, s.InUse, s.Open)
}
