package encoder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"mercator-hq/webdis/pkg/resp"
)

// jsonError is the rendering of an error reply.
type jsonError struct {
	Error string `json:"error"`
}

// jsonBinary is the base64 fallback for non-UTF-8 bulk replies.
type jsonBinary struct {
	Base64 string `json:"base64"`
}

type jsonMessage struct {
	Message string `json:"message"`
	Pattern string `json:"pattern,omitempty"`
	Payload any    `json:"payload"`
}

func (e *Encoder) encodeJSON(name string, v resp.Value) ([]byte, error) {
	return marshalJSON(map[string]any{name: e.jsonTree(v)})
}

func (e *Encoder) encodeJSONMessage(m Message) ([]byte, error) {
	return marshalJSON(jsonMessage{
		Message: m.Channel,
		Pattern: m.Pattern,
		Payload: e.jsonBytes(m.Payload),
	})
}

// jsonTree converts a reply into values encoding/json renders directly.
func (e *Encoder) jsonTree(v resp.Value) any {
	switch v.Kind {
	case resp.KindStatus:
		return string(v.Str)
	case resp.KindError:
		return jsonError{Error: string(v.Str)}
	case resp.KindInteger:
		return v.Int
	case resp.KindBulk:
		return e.jsonBytes(v.Str)
	case resp.KindArray:
		items := make([]any, len(v.Array))
		for i, elem := range v.Array {
			items[i] = e.jsonTree(elem)
		}
		return items
	default:
		return nil
	}
}

func (e *Encoder) jsonBytes(b []byte) any {
	if utf8.Valid(b) {
		return string(b)
	}
	if e.binary == BinaryReplace {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return jsonBinary{Base64: base64.StdEncoding.EncodeToString(b)}
}

// marshalJSON is json.Marshal without HTML escaping and without the
// trailing newline json.Encoder adds.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func wrapJSONP(callback string, body []byte) []byte {
	out := make([]byte, 0, len(callback)+len(body)+2)
	out = append(out, callback...)
	out = append(out, '(')
	out = append(out, body...)
	out = append(out, ')')
	return out
}
