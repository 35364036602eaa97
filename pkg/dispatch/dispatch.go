// Package dispatch sends ordinary commands to the backend through the
// connection pool.
//
// Each command checks out a connection, writes the command, reads exactly
// one reply and checks the connection back in. A transport failure is
// retried once on a fresh connection; a second failure is reported as
// pool.ErrBackendUnavailable. Subscribe-class commands are refused here;
// they belong to the pub/sub bridge.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/pool"
	"mercator-hq/webdis/pkg/resp"
	"mercator-hq/webdis/pkg/telemetry/logging"
	"mercator-hq/webdis/pkg/telemetry/metrics"
	"mercator-hq/webdis/pkg/telemetry/tracing"
)

// ErrPubSubCommand is returned by Dispatch for SUBSCRIBE, PSUBSCRIBE and
// their unsubscribe counterparts.
var ErrPubSubCommand = errors.New("subscribe-class command must be handled by the pub/sub bridge")

// ApplicationError is an error reply from the backend, such as a wrong
// type or unknown command. The connection that produced it stays usable.
type ApplicationError struct {
	Command string
	Message string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// Route says where a command must go.
type Route uint8

const (
	RouteBackend Route = iota
	RoutePubSub
)

// RouteOf classifies a command.
func RouteOf(cmd command.Command) Route {
	if cmd.IsPubSub() {
		return RoutePubSub
	}
	return RouteBackend
}

// maxAttempts is the first try plus one transparent retry.
const maxAttempts = 2

// Command status labels used in metrics.
const (
	statusOK          = "ok"
	statusError       = "error"
	statusExhausted   = "exhausted"
	statusUnavailable = "unavailable"
)

// Dispatcher executes commands against a pool.Manager.
type Dispatcher struct {
	pools   *pool.Manager
	tracer  *tracing.Tracer
	metrics *metrics.Collector
}

// New creates a Dispatcher. tracer and m may be nil.
func New(pools *pool.Manager, tracer *tracing.Tracer, m *metrics.Collector) *Dispatcher {
	return &Dispatcher{pools: pools, tracer: tracer, metrics: m}
}

// Dispatch runs cmd and returns its reply.
//
// A backend error reply is returned both as the Value and as an
// *ApplicationError. Pool failures wrap pool.ErrPoolExhausted or
// pool.ErrBackendUnavailable.
//
// Cancellation of ctx does not abort a command already handed to the
// backend; its side effects stand and only the reply is lost.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command, rc command.RequestContext) (resp.Value, error) {
	if cmd.Name == "" {
		return resp.Value{}, command.ErrMalformedCommand
	}
	if RouteOf(cmd) == RoutePubSub {
		return resp.Value{}, ErrPubSubCommand
	}

	ctx = context.WithoutCancel(ctx)
	name := cmd.Upper()

	ctx, span := d.tracer.Start(ctx, "dispatch "+name)
	defer span.End()
	tracing.SetCommandAttributes(span, name, len(cmd.Args))
	tracing.SetRequestAttributes(span, logging.GetRequestID(ctx), rc.Transport.String(), rc.Format.String())

	p := d.pools.Next()
	tracing.SetPoolAttribute(span, p.ID())

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.DebugContext(ctx, "dispatching command",
			"command", name,
			"args", logging.CommandArgs(name, cmd.Args),
			"pool", p.ID(),
		)
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		checkout := p.Checkout
		if attempt > 1 {
			checkout = p.CheckoutFresh
		}
		conn, err := checkout(ctx)
		if err != nil {
			status := statusUnavailable
			if errors.Is(err, pool.ErrPoolExhausted) {
				status = statusExhausted
			}
			d.metrics.RecordCommand(name, status, time.Since(start))
			tracing.SetError(span, err)
			return resp.Value{}, err
		}

		v, err := conn.Do(ctx, cmd.Name, cmd.Args)
		if err != nil {
			p.Checkin(conn, pool.TransportFailure)
			lastErr = err

			if attempt < maxAttempts {
				slog.WarnContext(ctx, "backend transport failure, retrying on a fresh connection",
					"command", name,
					"pool", p.ID(),
					"error", err,
				)
				d.metrics.RecordRetry(name)
				tracing.SetRetryAttribute(span, attempt)
			}
			continue
		}
		p.Checkin(conn, pool.Healthy)

		if v.IsError() {
			d.metrics.RecordCommand(name, statusError, time.Since(start))
			appErr := &ApplicationError{Command: cmd.Name, Message: v.Text()}
			tracing.SetError(span, appErr)
			return v, appErr
		}

		d.metrics.RecordCommand(name, statusOK, time.Since(start))
		tracing.SetStatus(span, nil)
		return v, nil
	}

	err := fmt.Errorf("%w: %s failed twice: %w", pool.ErrBackendUnavailable, name, lastErr)
	slog.ErrorContext(ctx, "backend command failed after retry",
		"command", name,
		"pool", p.ID(),
		"error", lastErr,
	)
	d.metrics.RecordCommand(name, statusUnavailable, time.Since(start))
	tracing.SetError(span, err)
	return resp.Value{}, err
}
