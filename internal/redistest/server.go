// Package redistest runs an in-process RESP2 server for tests.
//
// It understands enough of the Redis command set for the gateway and
// go-redis to talk to it: strings, AUTH, SELECT, PING, ECHO and the
// pub/sub family. Individual commands can be overridden with Handle to
// inject error replies, delays or dropped connections.
package redistest

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/webdis/pkg/resp"
)

// ErrHangUp, returned from a HandlerFunc, closes the client connection
// without writing a reply.
var ErrHangUp = errors.New("redistest: hang up")

// HandlerFunc overrides a command. args excludes the command name.
type HandlerFunc func(args [][]byte) (resp.Value, error)

// Server is a fake backend listening on a loopback port.
type Server struct {
	ln       net.Listener
	password string

	mu       sync.Mutex
	data     map[string][]byte
	handlers map[string]HandlerFunc
	delays   map[string]time.Duration
	counts   map[string]int
	conns    map[*conn]struct{}
	accepted int

	wg     sync.WaitGroup
	closed chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithPassword requires AUTH before any other command.
func WithPassword(password string) Option {
	return func(s *Server) { s.password = password }
}

// NewServer starts a server and registers Close with t.Cleanup.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("redistest: listen: %v", err)
	}

	s := &Server{
		ln:       ln,
		data:     make(map[string][]byte),
		handlers: make(map[string]HandlerFunc),
		delays:   make(map[string]time.Duration),
		counts:   make(map[string]int),
		conns:    make(map[*conn]struct{}),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)

	return s
}

// Addr returns host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Handle overrides the named command. Names are case-insensitive.
func (s *Server) Handle(name string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[strings.ToUpper(name)] = fn
}

// Delay makes the named command wait d before replying.
func (s *Server) Delay(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[strings.ToUpper(name)] = d
}

// Set stores a string key directly.
func (s *Server) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get reads a string key directly.
func (s *Server) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Count returns how many times the named command was received.
func (s *Server) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[strings.ToUpper(name)]
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Publish delivers payload to every subscriber of channel and returns the
// number of receivers, like PUBLISH.
func (s *Server) Publish(channel string, payload []byte) int {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	receivers := 0
	for _, c := range conns {
		receivers += c.deliver(channel, payload)
	}
	return receivers
}

// DropConnections closes every open client connection.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.nc.Close()
	}
}

// Close stops the listener and drops all connections.
func (s *Server) Close() {
	select {
	case <-s.closed:
		return
	default:
	}
	close(s.closed)
	_ = s.ln.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}

		c := &conn{
			srv:      s,
			nc:       nc,
			w:        resp.NewWriter(nc),
			channels: make(map[string]struct{}),
			patterns: make(map[string]struct{}),
			authed:   s.password == "",
		}

		s.mu.Lock()
		select {
		case <-s.closed:
			s.mu.Unlock()
			_ = nc.Close()
			return
		default:
		}
		s.conns[c] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()

			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}()
	}
}

func (s *Server) lookup(name string) (HandlerFunc, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name]++
	return s.handlers[name], s.delays[name]
}

func (s *Server) subscriberCount(channel string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for c := range s.conns {
		if c.hasChannel(channel) {
			n++
		}
	}
	return n
}
