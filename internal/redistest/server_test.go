package redistest

import (
	"net"
	"testing"
	"time"

	"mercator-hq/webdis/pkg/resp"
)

type client struct {
	t  *testing.T
	nc net.Conn
	r  *resp.Reader
	w  *resp.Writer
}

func dial(t *testing.T, s *Server) *client {
	t.Helper()
	nc, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	_ = nc.SetDeadline(time.Now().Add(5 * time.Second))
	return &client{t: t, nc: nc, r: resp.NewReader(nc), w: resp.NewWriter(nc)}
}

func (c *client) do(name string, args ...string) resp.Value {
	c.t.Helper()
	bargs := make([][]byte, len(args))
	for i, a := range args {
		bargs[i] = []byte(a)
	}
	if err := c.w.WriteCommand(name, bargs); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	if err := c.w.Flush(); err != nil {
		c.t.Fatalf("flush: %v", err)
	}
	return c.read()
}

func (c *client) read() resp.Value {
	c.t.Helper()
	v, err := c.r.ReadValue()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return v
}

func TestStrings(t *testing.T) {
	s := NewServer(t)
	c := dial(t, s)

	if v := c.do("SET", "k", "v"); v.Text() != "OK" {
		t.Errorf("SET = %q, want OK", v.Text())
	}
	if v := c.do("get", "k"); v.Kind != resp.KindBulk || v.Text() != "v" {
		t.Errorf("GET = %+v", v)
	}
	if v := c.do("GET", "missing"); v.Kind != resp.KindNil {
		t.Errorf("GET missing kind = %v, want nil", v.Kind)
	}
	if v := c.do("INCR", "n"); v.Int != 1 {
		t.Errorf("INCR = %d, want 1", v.Int)
	}
	if v := c.do("NOPE"); !v.IsError() {
		t.Error("expected error for unknown command")
	}
	if got := s.Count("set"); got != 1 {
		t.Errorf("Count(SET) = %d, want 1", got)
	}
}

func TestAuth(t *testing.T) {
	s := NewServer(t, WithPassword("secret"))
	c := dial(t, s)

	if v := c.do("GET", "k"); !v.IsError() {
		t.Error("expected NOAUTH before AUTH")
	}
	if v := c.do("AUTH", "wrong"); !v.IsError() {
		t.Error("expected WRONGPASS")
	}
	if v := c.do("AUTH", "secret"); v.Text() != "OK" {
		t.Errorf("AUTH = %q", v.Text())
	}
	if v := c.do("PING"); v.Text() != "PONG" {
		t.Errorf("PING = %q", v.Text())
	}
}

func TestHandleOverride(t *testing.T) {
	s := NewServer(t)
	s.Handle("GET", func(args [][]byte) (resp.Value, error) {
		return resp.Error("ERR injected"), nil
	})
	c := dial(t, s)

	if v := c.do("GET", "k"); v.Text() != "ERR injected" {
		t.Errorf("GET = %q, want injected error", v.Text())
	}
}

func TestPublishSubscribe(t *testing.T) {
	s := NewServer(t)
	sub := dial(t, s)
	pub := dial(t, s)

	ack := sub.do("SUBSCRIBE", "news")
	if len(ack.Array) != 3 || ack.Array[0].Text() != "subscribe" || ack.Array[2].Int != 1 {
		t.Fatalf("SUBSCRIBE ack = %+v", ack)
	}

	if v := pub.do("PUBLISH", "news", "hello"); v.Int != 1 {
		t.Errorf("PUBLISH receivers = %d, want 1", v.Int)
	}

	msg := sub.read()
	if len(msg.Array) != 3 || msg.Array[0].Text() != "message" || msg.Array[2].Text() != "hello" {
		t.Errorf("message = %+v", msg)
	}

	pack := sub.do("PSUBSCRIBE", "n*")
	if pack.Array[2].Int != 2 {
		t.Errorf("PSUBSCRIBE count = %d, want 2", pack.Array[2].Int)
	}
	if n := s.Publish("nets", []byte("x")); n != 1 {
		t.Errorf("Publish(nets) = %d, want 1", n)
	}
	pmsg := sub.read()
	if len(pmsg.Array) != 4 || pmsg.Array[0].Text() != "pmessage" || pmsg.Array[2].Text() != "nets" {
		t.Errorf("pmessage = %+v", pmsg)
	}
}
