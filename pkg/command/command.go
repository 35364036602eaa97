// Package command turns inbound HTTP requests and WebSocket frames into
// backend commands.
//
// Parsing never touches the backend: size limits and malformed input are
// rejected here so later stages only see well-formed commands.
package command

import (
	"net/netip"
	"strings"
)

// Command is one backend invocation. Name keeps the casing the client sent.
type Command struct {
	Name string
	Args [][]byte
}

// StringArgs returns the arguments as strings, mostly for logging.
func (c Command) StringArgs() []string {
	out := make([]string, len(c.Args))
	for i, a := range c.Args {
		out[i] = string(a)
	}
	return out
}

// Upper returns the command name in upper case for table lookups.
func (c Command) Upper() string {
	return strings.ToUpper(c.Name)
}

// IsSubscribe reports whether the command opens a subscription.
func (c Command) IsSubscribe() bool {
	return strings.EqualFold(c.Name, "SUBSCRIBE") || strings.EqualFold(c.Name, "PSUBSCRIBE")
}

// IsUnsubscribe reports whether the command closes a subscription.
func (c Command) IsUnsubscribe() bool {
	return strings.EqualFold(c.Name, "UNSUBSCRIBE") || strings.EqualFold(c.Name, "PUNSUBSCRIBE")
}

// IsPubSub reports whether the command belongs to the subscribe class and
// must be routed to the pub/sub bridge instead of the pool.
func (c Command) IsPubSub() bool {
	return c.IsSubscribe() || c.IsUnsubscribe()
}

// Transport is the kind of client connection a command arrived on.
type Transport uint8

const (
	TransportHTTP Transport = iota
	TransportWebSocket
)

func (t Transport) String() string {
	if t == TransportWebSocket {
		return "websocket"
	}
	return "http"
}

// RequestContext describes who sent a command and how the reply should be
// rendered. It lives for one request or one WebSocket frame.
type RequestContext struct {
	Transport Transport
	RemoteIP  netip.Addr

	// Basic auth credentials, set only when HasCredentials is true.
	Username       string
	Password       string
	HasCredentials bool

	Format   OutputFormat
	Callback string // JSONP function name, JSON format only
	BytesIn  int
}
