package pool

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"mercator-hq/webdis/pkg/resp"
)

// State is the lifecycle state of a pooled connection.
type State int32

const (
	StateIdle State = iota
	StateInUse
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in_use"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome tells Checkin whether the connection survived its last use.
type Outcome int

const (
	// Healthy covers both successful replies and backend error replies.
	// The connection is still in sync and goes back to the idle list.
	Healthy Outcome = iota

	// TransportFailure means a write, read or deadline failed. The stream
	// may be out of sync so the connection is discarded.
	TransportFailure
)

// Conn is one backend connection. It is owned by exactly one goroutine
// between Checkout and Checkin.
type Conn struct {
	nc        net.Conn
	r         *resp.Reader
	w         *resp.Writer
	ioTimeout time.Duration

	state    atomic.Int32
	created  time.Time
	lastUsed time.Time
}

func newConn(nc net.Conn, ioTimeout time.Duration) *Conn {
	now := time.Now()
	return &Conn{
		nc:        nc,
		r:         resp.NewReader(nc),
		w:         resp.NewWriter(nc),
		ioTimeout: ioTimeout,
		created:   now,
		lastUsed:  now,
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// Do writes one command and reads exactly one reply. A backend error reply
// is returned as a Value with KindError and a nil error; a non-nil error
// always means the transport failed and the connection is now Broken.
//
// The deadline is the earlier of the I/O timeout and ctx's deadline.
// Cancellation of ctx is not observed mid-command: once written, a command
// runs to completion so its reply can be consumed.
func (c *Conn) Do(ctx context.Context, name string, args [][]byte) (resp.Value, error) {
	deadline := time.Time{}
	if c.ioTimeout > 0 {
		deadline = time.Now().Add(c.ioTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.nc.SetDeadline(deadline); err != nil {
		c.setState(StateBroken)
		return resp.Value{}, err
	}

	if err := c.w.WriteCommand(name, args); err != nil {
		c.setState(StateBroken)
		return resp.Value{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := c.w.Flush(); err != nil {
		c.setState(StateBroken)
		return resp.Value{}, fmt.Errorf("write %s: %w", name, err)
	}

	v, err := c.r.ReadValue()
	if err != nil {
		c.setState(StateBroken)
		return resp.Value{}, fmt.Errorf("read %s reply: %w", name, err)
	}

	c.lastUsed = time.Now()
	return v, nil
}

// Close closes the underlying socket and marks the connection Broken.
func (c *Conn) Close() error {
	c.setState(StateBroken)
	return c.nc.Close()
}
