package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"mercator-hq/webdis/pkg/encoder"
	"mercator-hq/webdis/pkg/proxy/types"
)

// WriteJSONResponse writes data as a JSON body with the given status.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes errResp with the status its type maps to.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// WriteReply writes an encoded command reply. HEAD requests get the
// headers only.
func WriteReply(w http.ResponseWriter, r *http.Request, resp encoder.Response) error {
	h := w.Header()
	h.Set("Content-Type", resp.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := w.Write(resp.Body); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	return nil
}

// WriteSSEEvent writes one Server-Sent Event. Payload lines are split on
// '\n' and each is sent as its own data field, which clients join back
// with newlines. A '\r' would end a line early on the client, so payloads
// containing one cannot round-trip over SSE; use a WebSocket with the raw
// or msgpack format for arbitrary bytes.
func WriteSSEEvent(w io.Writer, event string, data []byte) error {
	var buf bytes.Buffer
	if event != "" {
		buf.WriteString("event: ")
		buf.WriteString(event)
		buf.WriteByte('\n')
	}
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	return nil
}

// WriteSSEComment writes a comment line, used as a keepalive.
func WriteSSEComment(w io.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	return nil
}
