package pubsub

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

// State is the lifecycle position of a Subscription.
type State int32

const (
	StateIdle State = iota
	StateSubscribing
	StateSubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event carries.
type EventKind uint8

const (
	// EventSubscribed acknowledges one channel or pattern.
	EventSubscribed EventKind = iota
	// EventUnsubscribed acknowledges removal of one channel or pattern.
	EventUnsubscribed
	// EventMessage is a published message.
	EventMessage
)

// Event is one item on a subscriber's queue.
type Event struct {
	Kind    EventKind
	Channel string
	// Pattern is the matching pattern for messages received through a
	// pattern subscription.
	Pattern string
	Payload []byte
	// Count is the number of channels still subscribed, acks only.
	Count int
}

// defaultAckTimeout bounds the wait for subscribe acknowledgments when no
// dial timeout is configured.
const defaultAckTimeout = 5 * time.Second

// Subscription is one subscribe call bound to a dedicated backend
// connection. Consume Events until it is closed, then check Err.
type Subscription struct {
	id        string
	transport string
	pattern   bool
	requested []string

	bridge *Bridge
	client *redis.Client
	ps     *redis.PubSub

	active *xsync.MapOf[string, struct{}]
	events chan Event
	state  atomic.Int32

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	mu  sync.Mutex
	err error
}

func newSubscription(id string, req Request, client *redis.Client, b *Bridge) *Subscription {
	return &Subscription{
		id:        id,
		transport: req.Transport,
		pattern:   req.Pattern,
		requested: req.Channels,
		bridge:    b,
		client:    client,
		active:    xsync.NewMapOf[string, struct{}](),
		// Room for every acknowledgment on top of the message buffer.
		events: make(chan Event, b.opts.BufferSize+len(req.Channels)),
		done:   make(chan struct{}),
	}
}

// ID is a unique identifier for logs.
func (s *Subscription) ID() string { return s.id }

// Pattern reports whether this is a pattern subscription.
func (s *Subscription) Pattern() bool { return s.pattern }

// State returns the current lifecycle state.
func (s *Subscription) State() State { return State(s.state.Load()) }

// Events returns the subscriber queue. It is closed when the subscription
// ends for any reason.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed once the backend connection has been released.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the reason the subscription ended abnormally, or nil after a
// normal unsubscribe or Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Channels returns the channels or patterns currently acknowledged.
func (s *Subscription) Channels() []string {
	out := make([]string, 0, s.active.Size())
	s.active.Range(func(name string, _ struct{}) bool {
		out = append(out, name)
		return true
	})
	sort.Strings(out)
	return out
}

// Has reports whether name is currently subscribed.
func (s *Subscription) Has(name string) bool {
	_, ok := s.active.Load(name)
	return ok
}

// Unsubscribe removes channels, or all of them when none are given. The
// subscription closes itself once the backend reports no channels left.
func (s *Subscription) Unsubscribe(ctx context.Context, channels ...string) error {
	if s.State() != StateSubscribed {
		return nil
	}
	if s.pattern {
		return s.ps.PUnsubscribe(ctx, channels...)
	}
	return s.ps.Unsubscribe(ctx, channels...)
}

// Close releases the backend connection and waits for the receive loop to
// exit. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closing.Store(true)
	s.releaseBackend()
	<-s.done
}

func (s *Subscription) releaseBackend() {
	s.closeOnce.Do(func() {
		if s.ps != nil {
			_ = s.ps.Close()
		}
		_ = s.client.Close()
	})
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// start issues the subscribe command and waits for one acknowledgment per
// requested channel. Messages that arrive in between are queued in order.
func (s *Subscription) start(ctx context.Context) error {
	s.state.Store(int32(StateSubscribing))

	fail := func(err error) error {
		s.releaseBackend()
		s.state.Store(int32(StateClosed))
		close(s.events)
		close(s.done)
		return err
	}

	s.ps = s.client.Subscribe(ctx)
	var err error
	if s.pattern {
		err = s.ps.PSubscribe(ctx, s.requested...)
	} else {
		err = s.ps.Subscribe(ctx, s.requested...)
	}
	if err != nil {
		return fail(err)
	}

	timeout := s.bridge.opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}

	pending := len(s.requested)
	for pending > 0 {
		msg, err := s.ps.ReceiveTimeout(ctx, timeout)
		if err != nil {
			return fail(err)
		}
		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" || m.Kind == "psubscribe" {
				pending--
				s.active.Store(m.Channel, struct{}{})
				if !s.push(Event{Kind: EventSubscribed, Channel: m.Channel, Count: m.Count}) {
					return fail(ErrSlowConsumer)
				}
			}
		case *redis.Message:
			if !s.push(messageEvent(m)) {
				return fail(ErrSlowConsumer)
			}
		}
	}

	s.state.Store(int32(StateSubscribed))
	return nil
}

// run forwards backend deliveries until the backend connection goes away,
// the last channel is unsubscribed or the subscriber overflows.
func (s *Subscription) run() {
	defer s.finish()

	m := s.bridge.opts.Metrics
	for {
		msg, err := s.ps.Receive(context.Background())
		if err != nil {
			if !s.closing.Load() {
				s.setErr(err)
				slog.Warn("subscription lost backend connection",
					"subscription_id", s.id,
					"error", err,
				)
			}
			return
		}

		switch v := msg.(type) {
		case *redis.Message:
			if !s.push(messageEvent(v)) {
				return
			}
			m.RecordMessage(s.transport)

		case *redis.Subscription:
			switch v.Kind {
			case "subscribe", "psubscribe":
				s.active.Store(v.Channel, struct{}{})
				if !s.push(Event{Kind: EventSubscribed, Channel: v.Channel, Count: v.Count}) {
					return
				}
			case "unsubscribe", "punsubscribe":
				s.active.Delete(v.Channel)
				if v.Channel != "" {
					if !s.push(Event{Kind: EventUnsubscribed, Channel: v.Channel, Count: v.Count}) {
						return
					}
				}
				if v.Count == 0 {
					return
				}
			}
		}
	}
}

// push queues ev without blocking. It returns false when the subscription
// must end because the subscriber is too slow.
func (s *Subscription) push(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
	}

	policy := s.bridge.opts.Overflow
	s.bridge.opts.Metrics.RecordOverflow(string(policy))
	if policy == OverflowDrop {
		slog.Debug("subscriber buffer full, dropping message",
			"subscription_id", s.id,
			"channel", ev.Channel,
		)
		return true
	}

	slog.Warn("subscriber buffer full, disconnecting",
		"subscription_id", s.id,
		"buffer_size", cap(s.events),
	)
	s.setErr(ErrSlowConsumer)
	return false
}

func (s *Subscription) finish() {
	s.releaseBackend()
	s.state.Store(int32(StateClosed))
	close(s.events)
	s.bridge.forget(s)
	close(s.done)

	slog.Debug("subscription closed", "subscription_id", s.id, "error", s.Err())
}

func messageEvent(m *redis.Message) Event {
	return Event{
		Kind:    EventMessage,
		Channel: m.Channel,
		Pattern: m.Pattern,
		Payload: []byte(m.Payload),
	}
}
