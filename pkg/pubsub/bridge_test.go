package pubsub

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/webdis/internal/redistest"
	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/pool"
	"mercator-hq/webdis/pkg/telemetry/metrics"
)

func newBridge(t *testing.T, srv *redistest.Server, mutate func(*Options)) *Bridge {
	t.Helper()
	opts := Options{
		Address:     srv.Addr(),
		DialTimeout: time.Second,
		BufferSize:  16,
		Overflow:    OverflowDisconnect,
	}
	if mutate != nil {
		mutate(&opts)
	}
	b := NewBridgeWithOptions(opts)
	t.Cleanup(b.Close)
	return b
}

func nextEvent(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatalf("events closed early, err = %v", s.Err())
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func waitDone(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}, Transport: "test"})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if s.State() != StateSubscribed {
		t.Errorf("state = %s, want subscribed", s.State())
	}

	ack := nextEvent(t, s)
	if ack.Kind != EventSubscribed || ack.Channel != "ch" || ack.Count != 1 {
		t.Fatalf("ack = %+v", ack)
	}
	if !s.Has("ch") {
		t.Error("Has(ch) = false")
	}

	for i := 0; i < 5; i++ {
		if n := srv.Publish("ch", []byte(fmt.Sprintf("m%d", i))); n != 1 {
			t.Fatalf("Publish receivers = %d, want 1", n)
		}
	}
	srv.Publish("other", []byte("ignored"))

	for i := 0; i < 5; i++ {
		ev := nextEvent(t, s)
		want := fmt.Sprintf("m%d", i)
		if ev.Kind != EventMessage || ev.Channel != "ch" || string(ev.Payload) != want {
			t.Errorf("event %d = %+v, want payload %s", i, ev, want)
		}
	}
}

func TestSubscribeMultipleChannels(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	nextEvent(t, s)
	nextEvent(t, s)

	if got := s.Channels(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Channels() = %v", got)
	}

	srv.Publish("b", []byte("to-b"))
	ev := nextEvent(t, s)
	if ev.Channel != "b" || string(ev.Payload) != "to-b" {
		t.Errorf("event = %+v", ev)
	}
}

func TestPatternSubscribe(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"news.*"}, Pattern: true})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !s.Pattern() {
		t.Error("Pattern() = false")
	}
	nextEvent(t, s)

	srv.Publish("news.tech", []byte("go"))
	ev := nextEvent(t, s)
	if ev.Kind != EventMessage || ev.Channel != "news.tech" || ev.Pattern != "news.*" || string(ev.Payload) != "go" {
		t.Errorf("event = %+v", ev)
	}
}

func TestSubscribeBinaryPayload(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"bin"}})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	nextEvent(t, s)

	payload := []byte{0x00, 0xff, '\r', '\n', 0x80}
	srv.Publish("bin", payload)
	ev := nextEvent(t, s)
	if string(ev.Payload) != string(payload) {
		t.Errorf("payload = %x, want %x", ev.Payload, payload)
	}
}

func TestUnsubscribeClosesSubscription(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	nextEvent(t, s)

	if err := s.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	ev := nextEvent(t, s)
	if ev.Kind != EventUnsubscribed || ev.Channel != "ch" || ev.Count != 0 {
		t.Errorf("event = %+v", ev)
	}

	waitDone(t, s)
	if _, ok := <-s.Events(); ok {
		t.Error("events still open after unsubscribe")
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil", s.Err())
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s", s.State())
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d, want 0", b.Active())
	}
	if n := srv.Publish("ch", []byte("late")); n != 0 {
		t.Errorf("late publish reached %d receivers", n)
	}
}

func TestPartialUnsubscribeKeepsStreaming(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	nextEvent(t, s)
	nextEvent(t, s)

	if err := s.Unsubscribe(context.Background(), "a"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	ev := nextEvent(t, s)
	if ev.Kind != EventUnsubscribed || ev.Channel != "a" || ev.Count != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if s.Has("a") {
		t.Error("still has a")
	}

	srv.Publish("b", []byte("still here"))
	ev = nextEvent(t, s)
	if ev.Kind != EventMessage || string(ev.Payload) != "still here" {
		t.Errorf("event = %+v", ev)
	}
}

func TestCloseReleasesBackend(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	s.Close()
	s.Close()

	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil after Close", s.Err())
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d", b.Active())
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.Publish("ch", []byte("x")) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("backend still delivering after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBackendDropEndsSubscription(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	nextEvent(t, s)

	srv.DropConnections()
	waitDone(t, s)

	if s.Err() == nil {
		t.Error("Err() = nil after backend drop")
	}
}

func TestOverflowDisconnect(t *testing.T) {
	srv := redistest.NewServer(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(&config.MetricsConfig{Namespace: "webdis", MaxCommandLabels: 10}, reg)
	b := newBridge(t, srv, func(o *Options) {
		o.BufferSize = 2
		o.Metrics = m
	})

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}, Transport: "test"})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		srv.Publish("ch", []byte("flood"))
	}
	waitDone(t, s)

	if !errors.Is(s.Err(), ErrSlowConsumer) {
		t.Errorf("Err() = %v, want ErrSlowConsumer", s.Err())
	}
	if got := counterValue(t, reg, "webdis_pubsub_overflow_total"); got != 1 {
		t.Errorf("overflow_total = %v, want 1", got)
	}

	// Whatever was queued before the overflow is still readable, then the
	// queue closes.
	n := 0
	for range s.Events() {
		n++
	}
	if n != 3 {
		t.Errorf("drained %d events, want ack plus 2 messages", n)
	}
}

func TestOverflowDrop(t *testing.T) {
	srv := redistest.NewServer(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(&config.MetricsConfig{Namespace: "webdis", MaxCommandLabels: 10}, reg)
	b := newBridge(t, srv, func(o *Options) {
		o.BufferSize = 2
		o.Overflow = OverflowDrop
		o.Metrics = m
	})

	s, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		srv.Publish("ch", []byte(fmt.Sprintf("m%d", i)))
	}

	deadline := time.Now().Add(2 * time.Second)
	for counterValue(t, reg, "webdis_pubsub_overflow_total") < 3 {
		if time.Now().After(deadline) {
			t.Fatal("overflow never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ev := nextEvent(t, s); ev.Kind != EventSubscribed {
		t.Fatalf("first event = %+v", ev)
	}
	for _, want := range []string{"m0", "m1"} {
		if ev := nextEvent(t, s); string(ev.Payload) != want {
			t.Errorf("payload = %q, want %q", ev.Payload, want)
		}
	}

	// The subscription survives and resumes once there is room.
	srv.Publish("ch", []byte("after"))
	if ev := nextEvent(t, s); string(ev.Payload) != "after" {
		t.Errorf("payload = %q, want after", ev.Payload)
	}
	if s.State() != StateSubscribed {
		t.Errorf("state = %s", s.State())
	}
}

func TestSubscribeWithPassword(t *testing.T) {
	srv := redistest.NewServer(t, redistest.WithPassword("secret"))

	t.Run("accepted", func(t *testing.T) {
		b := newBridge(t, srv, func(o *Options) { o.Password = "secret" })
		s, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		s.Close()
	})

	t.Run("rejected", func(t *testing.T) {
		b := newBridge(t, srv, func(o *Options) { o.Password = "wrong" })
		_, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}})
		if !errors.Is(err, pool.ErrBackendUnavailable) {
			t.Errorf("error = %v, want ErrBackendUnavailable", err)
		}
	})
}

func TestSubscribeUnreachable(t *testing.T) {
	srv := redistest.NewServer(t)
	addr := srv.Addr()
	srv.Close()

	b := NewBridgeWithOptions(Options{Address: addr, DialTimeout: 200 * time.Millisecond})
	defer b.Close()

	_, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}})
	if !errors.Is(err, pool.ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrBackendUnavailable", err)
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d", b.Active())
	}
}

func TestSubscribeValidation(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	if _, err := b.Subscribe(context.Background(), Request{}); !errors.Is(err, ErrNoChannels) {
		t.Errorf("error = %v, want ErrNoChannels", err)
	}

	b.Close()
	if _, err := b.Subscribe(context.Background(), Request{Channels: []string{"ch"}}); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("error = %v, want ErrBridgeClosed", err)
	}
}

func TestBridgeCloseEndsAll(t *testing.T) {
	srv := redistest.NewServer(t)
	b := newBridge(t, srv, nil)

	var subs []*Subscription
	for _, ch := range []string{"a", "b", "c"} {
		s, err := b.Subscribe(context.Background(), Request{Channels: []string{ch}})
		if err != nil {
			t.Fatalf("Subscribe(%s) error = %v", ch, err)
		}
		subs = append(subs, s)
	}
	if b.Active() != 3 {
		t.Fatalf("Active() = %d, want 3", b.Active())
	}

	b.Close()
	for _, s := range subs {
		waitDone(t, s)
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d after Close", b.Active())
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
