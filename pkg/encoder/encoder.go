// Package encoder renders backend replies in the client's requested format.
//
// Every format wraps the reply under the command name: JSON and MsgPack as a
// single-key map, Raw as plain text. Error replies keep that shape and carry
// a 500 status.
package encoder

import (
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/resp"
)

// ErrEncoding is returned when a value cannot be represented in the
// requested format.
var ErrEncoding = errors.New("encoding error")

// BinaryMode selects how JSON renders bulk replies that are not valid UTF-8.
type BinaryMode string

const (
	// BinaryBase64 renders the bytes as {"base64": "<std encoding>"}.
	BinaryBase64 BinaryMode = config.JSONBinaryBase64
	// BinaryReplace substitutes U+FFFD for each invalid byte sequence.
	BinaryReplace BinaryMode = config.JSONBinaryReplace
)

// Response is an encoded reply ready to write.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Encoder is safe for concurrent use.
type Encoder struct {
	binary BinaryMode
}

// New creates an encoder. An empty mode means BinaryBase64.
func New(mode BinaryMode) *Encoder {
	if mode == "" {
		mode = BinaryBase64
	}
	return &Encoder{binary: mode}
}

// Encode renders v as the reply to command name.
func (e *Encoder) Encode(name string, v resp.Value, rc command.RequestContext) (Response, error) {
	status := http.StatusOK
	if v.Kind == resp.KindError {
		status = http.StatusInternalServerError
	}

	var (
		body []byte
		err  error
	)
	contentType := rc.Format.ContentType()

	switch rc.Format {
	case command.FormatRaw:
		body = encodeRaw(v)
	case command.FormatMsgPack:
		body, err = encodeMsgPack(name, v)
	default:
		body, err = e.encodeJSON(name, v)
		if err == nil && rc.Callback != "" {
			body = wrapJSONP(rc.Callback, body)
			contentType = command.ContentTypeJSONP
		}
	}
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s reply to %s: %w", ErrEncoding, rc.Format, name, err)
	}

	return Response{Status: status, ContentType: contentType, Body: body}, nil
}

// EncodeError renders an application error message under the command name,
// as if the backend had replied with it.
func (e *Encoder) EncodeError(name, msg string, rc command.RequestContext) (Response, error) {
	return e.Encode(name, resp.Error(msg), rc)
}

// Message is a published pub/sub message as pushed to a WebSocket client.
type Message struct {
	Channel string
	Pattern string // set for pattern subscriptions only
	Payload []byte
}

// EncodeMessage renders a pushed message. JSON and MsgPack produce
// {"message": channel, "payload": payload} with "pattern" added for pattern
// subscriptions; Raw produces the payload bytes alone.
func (e *Encoder) EncodeMessage(m Message, format command.OutputFormat) ([]byte, error) {
	switch format {
	case command.FormatRaw:
		return m.Payload, nil
	case command.FormatMsgPack:
		b, err := encodeMsgPackMessage(m)
		if err != nil {
			return nil, fmt.Errorf("%w: message on %s: %w", ErrEncoding, m.Channel, err)
		}
		return b, nil
	default:
		b, err := e.encodeJSONMessage(m)
		if err != nil {
			return nil, fmt.Errorf("%w: message on %s: %w", ErrEncoding, m.Channel, err)
		}
		return b, nil
	}
}
