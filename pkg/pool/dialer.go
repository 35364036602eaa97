package pool

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Dialer opens and prepares backend connections: TCP, optional TLS, AUTH
// and SELECT.
type Dialer struct {
	Address   string
	TLSConfig *tls.Config

	Username string
	Password string
	Database int

	ConnectTimeout time.Duration
	IOTimeout      time.Duration
}

// Dial opens one connection. The whole handshake is bounded by
// ConnectTimeout.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}

	var nd net.Dialer
	nc, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, err
	}

	if d.TLSConfig != nil {
		tc := tls.Client(nc, d.TLSConfig.Clone())
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		nc = tc
	}

	c := newConn(nc, d.IOTimeout)
	if err := d.handshake(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

func (d *Dialer) handshake(ctx context.Context, c *Conn) error {
	if d.Password != "" {
		args := [][]byte{[]byte(d.Password)}
		if d.Username != "" {
			args = [][]byte{[]byte(d.Username), []byte(d.Password)}
		}
		v, err := c.Do(ctx, "AUTH", args)
		if err != nil {
			return err
		}
		if v.IsError() {
			return &HandshakeError{Command: "AUTH", Message: v.Text()}
		}
	}

	if d.Database != 0 {
		v, err := c.Do(ctx, "SELECT", [][]byte{[]byte(strconv.Itoa(d.Database))})
		if err != nil {
			return err
		}
		if v.IsError() {
			return &HandshakeError{Command: "SELECT", Message: v.Text()}
		}
	}

	return nil
}
