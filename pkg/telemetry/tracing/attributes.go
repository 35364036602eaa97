package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Gateway-specific keys use the "webdis." namespace; the
// backend call follows the db.* semantic conventions.
const (
	AttrDBSystem    = "db.system"
	AttrDBOperation = "db.operation"

	AttrHTTPMethod = "http.method"
	AttrHTTPTarget = "http.target"

	AttrRequestID  = "webdis.request_id"
	AttrTransport  = "webdis.transport"
	AttrFormat     = "webdis.format"
	AttrArgCount   = "webdis.command.args"
	AttrPool       = "webdis.pool"
	AttrRetryCount = "webdis.retry_count"
	AttrChannels   = "webdis.pubsub.channels"
	AttrPattern    = "webdis.pubsub.pattern"

	AttrErrorMessage = "error.message"
)

// SetCommandAttributes records the command verb and argument count. Argument
// values are never recorded.
func SetCommandAttributes(span trace.Span, name string, argc int) {
	span.SetAttributes(
		attribute.String(AttrDBSystem, "redis"),
		attribute.String(AttrDBOperation, name),
		attribute.Int(AttrArgCount, argc),
	)
}

// SetRequestAttributes records where a command came from.
func SetRequestAttributes(span trace.Span, requestID, transport, format string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrTransport, transport),
		attribute.String(AttrFormat, format),
	}
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	span.SetAttributes(attrs...)
}

// SetHTTPAttributes records the inbound request line.
func SetHTTPAttributes(span trace.Span, method, target string) {
	span.SetAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPTarget, target),
	)
}

// SetPoolAttribute records which worker pool served the command.
func SetPoolAttribute(span trace.Span, pool int) {
	span.SetAttributes(attribute.Int(AttrPool, pool))
}

// SetRetryAttribute records the number of retries.
func SetRetryAttribute(span trace.Span, retryCount int) {
	span.SetAttributes(attribute.Int(AttrRetryCount, retryCount))
}

// SetSubscriptionAttributes records the channels of a subscription.
func SetSubscriptionAttributes(span trace.Span, channels []string, pattern bool) {
	span.SetAttributes(
		attribute.StringSlice(AttrChannels, channels),
		attribute.Bool(AttrPattern, pattern),
	)
}
