package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"

	"mercator-hq/webdis/pkg/acl"
	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/dispatch"
	"mercator-hq/webdis/pkg/encoder"
	"mercator-hq/webdis/pkg/proxy"
	"mercator-hq/webdis/pkg/pubsub"
	"mercator-hq/webdis/pkg/resp"
	"mercator-hq/webdis/pkg/telemetry/logging"
	"mercator-hq/webdis/pkg/telemetry/metrics"
)

const (
	defaultWriteTimeout = 10 * time.Second
	closeGracePeriod    = time.Second
)

// WebSocketHandler serves one WebSocket endpoint. Clients send commands as
// JSON arrays, ["SET","k","v"], and get one reply frame per command.
// SUBSCRIBE and PSUBSCRIBE frames start push delivery on the same socket;
// ordinary commands keep working alongside any number of subscriptions.
type WebSocketHandler struct {
	ACL        *acl.Engine
	Dispatcher Dispatcher
	Bridge     *pubsub.Bridge
	Encoder    *encoder.Encoder
	Metrics    *metrics.Collector

	// Format is fixed per endpoint: /.json, /.raw or /.msg.
	Format command.OutputFormat

	// MaxMessageSize caps inbound frames. Zero means no limit.
	MaxMessageSize int64

	// PingInterval sends protocol pings to keep idle sockets open.
	// Zero disables them.
	PingInterval time.Duration

	// WriteTimeout bounds each outbound frame. Default: 10s
	WriteTimeout time.Duration

	upgrader websocket.Upgrader
}

// NewWebSocketHandler returns a handler for the given reply format.
func NewWebSocketHandler(format command.OutputFormat) *WebSocketHandler {
	return &WebSocketHandler{
		Format: format,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Any origin may issue commands, as with CORS on plain HTTP.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs the session until either side
// closes it.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		slog.DebugContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(logging.WithSessionID(context.WithoutCancel(r.Context()), sessionID))
	defer cancel()

	base := command.RequestContext{
		Transport: command.TransportWebSocket,
		RemoteIP:  command.RemoteIP(r.RemoteAddr),
		Format:    h.Format,
	}
	if user, pass, ok := r.BasicAuth(); ok {
		base.Username, base.Password, base.HasCredentials = user, pass, true
	}

	writeTimeout := h.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	s := &session{
		id:           sessionID,
		h:            h,
		conn:         conn,
		base:         base,
		writeTimeout: writeTimeout,
		subs:         xsync.NewMapOf[string, *pubsub.Subscription](),
	}

	slog.InfoContext(ctx, "websocket session opened",
		"remote_addr", r.RemoteAddr,
		"format", h.Format.String(),
	)
	s.run(ctx)
	slog.InfoContext(ctx, "websocket session closed")
}

// session is one client socket and the subscriptions multiplexed onto it.
type session struct {
	id           string
	h            *WebSocketHandler
	conn         *websocket.Conn
	base         command.RequestContext
	writeTimeout time.Duration

	// writeMu serializes frames from the read loop and the forwarders.
	writeMu sync.Mutex

	subs *xsync.MapOf[string, *pubsub.Subscription]
	wg   sync.WaitGroup
}

func (s *session) run(ctx context.Context) {
	defer s.shutdown()

	if s.h.MaxMessageSize > 0 {
		s.conn.SetReadLimit(s.h.MaxMessageSize)
	}
	if s.h.PingInterval > 0 {
		go s.ping(ctx)
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "websocket read ended", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if err := s.handleFrame(ctx, data); err != nil {
			slog.DebugContext(ctx, "websocket write failed", "error", err)
			return
		}
	}
}

// handleFrame runs one command. The returned error is a write failure; any
// command failure is reported to the client instead.
func (s *session) handleFrame(ctx context.Context, data []byte) error {
	rc := s.base
	rc.BytesIn = len(data)

	cmd, err := command.ParseFrame(data)
	if err != nil {
		return s.writeFailure(err)
	}

	if err := checkACL(s.h.ACL, s.h.Metrics, cmd, rc); err != nil {
		slog.InfoContext(ctx, "command denied",
			"command", cmd.Name,
			"remote_ip", rc.RemoteIP.String(),
			"error", err,
		)
		return s.writeFailure(err)
	}

	switch {
	case cmd.IsSubscribe():
		return s.subscribe(ctx, cmd, rc)
	case cmd.IsUnsubscribe():
		return s.unsubscribe(ctx, cmd, rc)
	}

	// Backend error replies are encoded like any other value.
	v, err := s.h.Dispatcher.Dispatch(ctx, cmd, rc)
	var appErr *dispatch.ApplicationError
	if err != nil && !errors.As(err, &appErr) {
		return s.writeFailure(err)
	}
	return s.writeValue(cmd.Name, v, rc)
}

func (s *session) subscribe(ctx context.Context, cmd command.Command, rc command.RequestContext) error {
	sub, err := s.h.Bridge.Subscribe(ctx, pubsub.Request{
		Channels:  cmd.StringArgs(),
		Pattern:   cmd.Upper() == "PSUBSCRIBE",
		Transport: "websocket",
	})
	if err != nil {
		return s.writeFailure(err)
	}

	s.subs.Store(sub.ID(), sub)
	s.wg.Add(1)
	go s.forward(ctx, sub, rc)
	return nil
}

// unsubscribe routes the command to every subscription of the same kind
// that holds one of the named channels, or to all of them when no channel
// is named. Names nobody holds are acknowledged with a zero count.
func (s *session) unsubscribe(ctx context.Context, cmd command.Command, rc command.RequestContext) error {
	pattern := cmd.Upper() == "PUNSUBSCRIBE"
	channels := cmd.StringArgs()
	held := make(map[string]struct{})

	s.subs.Range(func(_ string, sub *pubsub.Subscription) bool {
		if sub.Pattern() != pattern {
			return true
		}
		targets := channels
		if len(channels) > 0 {
			targets = lo.Filter(channels, func(ch string, _ int) bool { return sub.Has(ch) })
			if len(targets) == 0 {
				return true
			}
		}
		for _, ch := range lo.Ternary(len(targets) > 0, targets, sub.Channels()) {
			held[ch] = struct{}{}
		}
		if err := sub.Unsubscribe(ctx, targets...); err != nil {
			slog.WarnContext(ctx, "unsubscribe failed",
				"subscription_id", sub.ID(),
				"error", err,
			)
		}
		return true
	})

	kind := strings.ToLower(cmd.Upper())
	for _, ch := range channels {
		if _, ok := held[ch]; ok {
			continue
		}
		ack := resp.Array(resp.BulkString(kind), resp.BulkString(ch), resp.Integer(0))
		if err := s.writeValue(cmd.Upper(), ack, rc); err != nil {
			return err
		}
	}
	if len(channels) == 0 && len(held) == 0 {
		ack := resp.Array(resp.BulkString(kind), resp.Nil(), resp.Integer(0))
		return s.writeValue(cmd.Upper(), ack, rc)
	}
	return nil
}

// forward drains one subscription onto the socket until it closes.
func (s *session) forward(ctx context.Context, sub *pubsub.Subscription, rc command.RequestContext) {
	defer s.wg.Done()
	defer s.subs.Delete(sub.ID())

	subKind, unsubKind := "subscribe", "unsubscribe"
	if sub.Pattern() {
		subKind, unsubKind = "psubscribe", "punsubscribe"
	}

	for ev := range sub.Events() {
		var err error
		switch ev.Kind {
		case pubsub.EventSubscribed:
			err = s.writeValue(strings.ToUpper(subKind), ackValue(subKind, ev), rc)
		case pubsub.EventUnsubscribed:
			err = s.writeValue(strings.ToUpper(unsubKind), ackValue(unsubKind, ev), rc)
		case pubsub.EventMessage:
			err = s.writeMessage(ev, rc.Format)
		}
		if err != nil {
			// The read loop sees the broken socket and tears everything down.
			slog.DebugContext(ctx, "websocket push failed", "subscription_id", sub.ID(), "error", err)
			sub.Close()
			return
		}
	}

	if err := sub.Err(); err != nil {
		slog.WarnContext(ctx, "subscription ended",
			"subscription_id", sub.ID(),
			"error", err,
		)
		_ = s.writeFailure(err)
	}
}

func ackValue(kind string, ev pubsub.Event) resp.Value {
	return resp.Array(resp.BulkString(kind), resp.BulkString(ev.Channel), resp.Integer(int64(ev.Count)))
}

func (s *session) writeValue(name string, v resp.Value, rc command.RequestContext) error {
	out, err := s.h.Encoder.Encode(name, v, rc)
	if err != nil {
		return s.writeFailure(err)
	}
	return s.write(frameType(rc.Format, out.Body), out.Body)
}

func (s *session) writeMessage(ev pubsub.Event, format command.OutputFormat) error {
	body, err := s.h.Encoder.EncodeMessage(encoder.Message{
		Channel: ev.Channel,
		Pattern: ev.Pattern,
		Payload: ev.Payload,
	}, format)
	if err != nil {
		return s.writeFailure(err)
	}
	return s.write(frameType(format, body), body)
}

// writeFailure sends the gateway error body for failures that have no
// backend reply.
func (s *session) writeFailure(err error) error {
	body, mErr := json.Marshal(proxy.HandleError(err))
	if mErr != nil {
		return mErr
	}
	return s.write(websocket.TextMessage, body)
}

func (s *session) write(mt int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(mt, data)
}

func (s *session) ping(ctx context.Context) {
	ticker := time.NewTicker(s.h.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
		}
	}
}

// shutdown closes every subscription, waits for the forwarders and closes
// the socket.
func (s *session) shutdown() {
	s.subs.Range(func(_ string, sub *pubsub.Subscription) bool {
		sub.Close()
		return true
	})
	s.wg.Wait()

	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod))
	_ = s.conn.Close()
}

// frameType picks a text frame when the body is valid UTF-8 and a binary
// frame otherwise. MsgPack is always binary.
func frameType(format command.OutputFormat, body []byte) int {
	if format == command.FormatMsgPack || !utf8.Valid(body) {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
