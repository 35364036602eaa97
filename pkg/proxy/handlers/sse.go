package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/proxy"
	"mercator-hq/webdis/pkg/pubsub"
)

// SSE event names.
const (
	eventSubscribe = "subscribe"
	eventMessage   = "message"
	eventError     = "error"
)

// SSEHandler streams a subscription as Server-Sent Events. Each published
// message becomes
//
//	event: message
//	data: <payload>
//
// Subscribe acknowledgments are sent as "subscribe" events carrying the
// channel name, comment lines keep idle connections open, and a terminal
// "error" event is sent when the backend link fails or the client falls
// too far behind.
type SSEHandler struct {
	Bridge *pubsub.Bridge

	// Keepalive is the comment heartbeat period. Zero disables it.
	Keepalive time.Duration
}

// Serve runs the stream for an already parsed and authorized SUBSCRIBE or
// PSUBSCRIBE. It returns when the client disconnects or the subscription
// ends.
func (h *SSEHandler) Serve(w http.ResponseWriter, r *http.Request, cmd command.Command, rc command.RequestContext) {
	ctx := r.Context()

	sub, err := h.Bridge.Subscribe(ctx, pubsub.Request{
		Channels:  cmd.StringArgs(),
		Pattern:   cmd.Upper() == "PSUBSCRIBE",
		Transport: "sse",
	})
	if err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}
	defer sub.Close()

	ctrl := http.NewResponseController(w)
	// The server write timeout is meant for single replies.
	_ = ctrl.SetWriteDeadline(time.Time{})

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := ctrl.Flush(); err != nil {
		slog.WarnContext(ctx, "response does not support streaming", "error", err)
		return
	}

	var keepalive <-chan time.Time
	if h.Keepalive > 0 {
		ticker := time.NewTicker(h.Keepalive)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	slog.DebugContext(ctx, "sse stream opened",
		"subscription_id", sub.ID(),
		"channels", cmd.StringArgs(),
	)

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "sse client disconnected", "subscription_id", sub.ID())
			return

		case <-keepalive:
			if err := proxy.WriteSSEComment(w, "keepalive"); err != nil {
				return
			}

		case ev, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					slog.WarnContext(ctx, "sse stream ended",
						"subscription_id", sub.ID(),
						"error", err,
					)
					_ = proxy.WriteSSEEvent(w, eventError, []byte(err.Error()))
					_ = ctrl.Flush()
				}
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
		}

		if err := ctrl.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, ev pubsub.Event) error {
	switch ev.Kind {
	case pubsub.EventSubscribed:
		return proxy.WriteSSEEvent(w, eventSubscribe, []byte(ev.Channel))
	case pubsub.EventMessage:
		return proxy.WriteSSEEvent(w, eventMessage, ev.Payload)
	}
	return nil
}
