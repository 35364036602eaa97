package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"mercator-hq/webdis/pkg/acl"
	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/dispatch"
	"mercator-hq/webdis/pkg/encoder"
	"mercator-hq/webdis/pkg/proxy"
	"mercator-hq/webdis/pkg/resp"
	"mercator-hq/webdis/pkg/telemetry/metrics"
)

// Dispatcher executes an ordinary command against the backend.
// *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command, rc command.RequestContext) (resp.Value, error)
}

// CommandHandler serves command paths: GET /CMD/args, POST / and PUT.
type CommandHandler struct {
	Parser     *command.Parser
	ACL        *acl.Engine
	Dispatcher Dispatcher
	Encoder    *encoder.Encoder

	// Streams serves subscribe-class commands. Nil rejects them.
	Streams *SSEHandler

	Metrics *metrics.Collector
}

// ServeHTTP implements http.Handler.
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cmd, rc, err := h.Parser.ParseHTTP(r)
	if err != nil {
		slog.DebugContext(ctx, "rejected request", "path", r.URL.Path, "error", err)
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	if err := checkACL(h.ACL, h.Metrics, cmd, rc); err != nil {
		slog.InfoContext(ctx, "command denied",
			"command", cmd.Name,
			"remote_ip", rc.RemoteIP.String(),
			"error", err,
		)
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	switch {
	case cmd.IsSubscribe():
		if h.Streams == nil {
			_ = proxy.WriteErrorResponse(w, proxy.HandleError(
				fmt.Errorf("%w: %s is not available on this endpoint", command.ErrMalformedCommand, cmd.Name)))
			return
		}
		h.Streams.Serve(w, r, cmd, rc)
		return
	case cmd.IsUnsubscribe():
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(
			fmt.Errorf("%w: %s requires a subscription stream", command.ErrMalformedCommand, cmd.Name)))
		return
	}

	v, err := h.Dispatcher.Dispatch(ctx, cmd, rc)
	var appErr *dispatch.ApplicationError
	if err != nil && !errors.As(err, &appErr) {
		slog.WarnContext(ctx, "command failed",
			"command", cmd.Name,
			"error", err,
		)
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	out, err := h.Encoder.Encode(cmd.Name, v, rc)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode reply",
			"command", cmd.Name,
			"format", rc.Format.String(),
			"error", err,
		)
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	if err := proxy.WriteReply(w, r, out); err != nil {
		// The command already ran; only the delivery is lost.
		slog.DebugContext(ctx, "client went away before reply", "command", cmd.Name, "error", err)
	}
}

// checkACL evaluates rules and counts denials. A nil engine allows all.
func checkACL(engine *acl.Engine, m *metrics.Collector, cmd command.Command, rc command.RequestContext) error {
	if engine == nil {
		return nil
	}
	err := engine.Check(cmd, rc)
	if err != nil {
		m.RecordACLDenied(cmd.Upper())
	}
	return err
}
