package encoder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/resp"
)

var binaryPayload = []byte{0xff, 0x00, 0xfe, 'a', 0x80}

func rc(format command.OutputFormat) command.RequestContext {
	return command.RequestContext{Format: format}
}

func TestEncodeJSON(t *testing.T) {
	enc := New(BinaryBase64)

	tests := []struct {
		name    string
		command string
		value   resp.Value
		want    string
		status  int
	}{
		{"status", "SET", resp.Status("OK"), `{"SET":"OK"}`, http.StatusOK},
		{"integer", "INCR", resp.Integer(1), `{"INCR":1}`, http.StatusOK},
		{"negative integer", "DECR", resp.Integer(-7), `{"DECR":-7}`, http.StatusOK},
		{"bulk", "GET", resp.BulkString("1"), `{"GET":"1"}`, http.StatusOK},
		{"nil", "GET", resp.Nil(), `{"GET":null}`, http.StatusOK},
		{"html not escaped", "GET", resp.BulkString("<a&b>"), `{"GET":"<a&b>"}`, http.StatusOK},
		{"array", "MGET", resp.Array(resp.BulkString("x"), resp.Nil(), resp.Integer(3)), `{"MGET":["x",null,3]}`, http.StatusOK},
		{"nested array", "EXEC", resp.Array(resp.Array(resp.Status("OK")), resp.Error("ERR boom")), `{"EXEC":[["OK"],{"error":"ERR boom"}]}`, http.StatusOK},
		{"error reply", "INCR", resp.Error("ERR value is not an integer"), `{"INCR":{"error":"ERR value is not an integer"}}`, http.StatusInternalServerError},
		{"case preserved", "get", resp.BulkString("v"), `{"get":"v"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encode(tt.command, tt.value, rc(command.FormatJSON))
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got.Body) != tt.want {
				t.Errorf("body = %s, want %s", got.Body, tt.want)
			}
			if got.Status != tt.status {
				t.Errorf("status = %d, want %d", got.Status, tt.status)
			}
			if got.ContentType != command.ContentTypeJSON {
				t.Errorf("content type = %q", got.ContentType)
			}
		})
	}
}

func TestEncodeJSONBinary(t *testing.T) {
	t.Run("base64", func(t *testing.T) {
		got, err := New(BinaryBase64).Encode("GET", resp.Bulk(binaryPayload), rc(command.FormatJSON))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		var decoded map[string]map[string]string
		if err := json.Unmarshal(got.Body, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", got.Body, err)
		}
		raw, err := base64.StdEncoding.DecodeString(decoded["GET"]["base64"])
		if err != nil {
			t.Fatalf("decode base64: %v", err)
		}
		if !bytes.Equal(raw, binaryPayload) {
			t.Errorf("round trip = %x, want %x", raw, binaryPayload)
		}
	})

	t.Run("replace", func(t *testing.T) {
		got, err := New(BinaryReplace).Encode("GET", resp.Bulk([]byte{'o', 0xff, 'k'}), rc(command.FormatJSON))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		want := "{\"GET\":\"o�k\"}"
		if string(got.Body) != want {
			t.Errorf("body = %q, want %q", got.Body, want)
		}
	})

	t.Run("default mode is base64", func(t *testing.T) {
		got, err := New("").Encode("GET", resp.Bulk(binaryPayload), rc(command.FormatJSON))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if !strings.Contains(string(got.Body), `"base64"`) {
			t.Errorf("body = %s, want base64 object", got.Body)
		}
	})
}

func TestEncodeJSONP(t *testing.T) {
	ctx := rc(command.FormatJSON)
	ctx.Callback = "cb"

	got, err := New(BinaryBase64).Encode("GET", resp.BulkString("v"), ctx)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(got.Body) != `cb({"GET":"v"})` {
		t.Errorf("body = %s", got.Body)
	}
	if got.ContentType != command.ContentTypeJSONP {
		t.Errorf("content type = %q", got.ContentType)
	}

	// Callbacks only apply to JSON.
	ctx.Format = command.FormatRaw
	got, err = New(BinaryBase64).Encode("GET", resp.BulkString("v"), ctx)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(got.Body) != "v" {
		t.Errorf("raw body = %q", got.Body)
	}
}

func TestEncodeRaw(t *testing.T) {
	enc := New(BinaryBase64)

	tests := []struct {
		name  string
		value resp.Value
		want  []byte
	}{
		{"status", resp.Status("OK"), []byte("OK")},
		{"integer", resp.Integer(42), []byte("42")},
		{"bulk binary", resp.Bulk(binaryPayload), binaryPayload},
		{"nil", resp.Nil(), []byte{}},
		{"array", resp.Array(resp.BulkString("a"), resp.Integer(2), resp.Nil(), resp.BulkString("c")), []byte("a\n2\n\nc")},
		{"error", resp.Error("ERR nope"), []byte("ERR nope")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encode("CMD", tt.value, rc(command.FormatRaw))
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got.Body, tt.want) {
				t.Errorf("body = %q, want %q", got.Body, tt.want)
			}
			if got.ContentType != command.ContentTypeRaw {
				t.Errorf("content type = %q", got.ContentType)
			}
		})
	}
}

func decodeMsgPack(t *testing.T, b []byte) map[string]any {
	t.Helper()
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		t.Fatalf("decode msgpack: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map", v)
	}
	return m
}

func TestEncodeMsgPack(t *testing.T) {
	enc := New(BinaryBase64)

	t.Run("text bulk is str", func(t *testing.T) {
		got, err := enc.Encode("GET", resp.BulkString("héllo"), rc(command.FormatMsgPack))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if got.ContentType != command.ContentTypeMsgPack {
			t.Errorf("content type = %q", got.ContentType)
		}
		m := decodeMsgPack(t, got.Body)
		if s, ok := m["GET"].(string); !ok || s != "héllo" {
			t.Errorf("GET = %#v", m["GET"])
		}
	})

	t.Run("binary bulk round trips", func(t *testing.T) {
		got, err := enc.Encode("GET", resp.Bulk(binaryPayload), rc(command.FormatMsgPack))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		m := decodeMsgPack(t, got.Body)
		b, ok := m["GET"].([]byte)
		if !ok {
			t.Fatalf("GET = %T, want []byte", m["GET"])
		}
		if !bytes.Equal(b, binaryPayload) {
			t.Errorf("round trip = %x, want %x", b, binaryPayload)
		}
	})

	t.Run("array with integer nil and error", func(t *testing.T) {
		v := resp.Array(resp.Integer(5), resp.Nil(), resp.Error("ERR x"))
		got, err := enc.Encode("EXEC", v, rc(command.FormatMsgPack))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		m := decodeMsgPack(t, got.Body)
		items, ok := m["EXEC"].([]any)
		if !ok || len(items) != 3 {
			t.Fatalf("EXEC = %#v", m["EXEC"])
		}
		if n, ok := items[0].(int64); !ok || n != 5 {
			t.Errorf("items[0] = %#v", items[0])
		}
		if items[1] != nil {
			t.Errorf("items[1] = %#v, want nil", items[1])
		}
		errObj, ok := items[2].(map[string]any)
		if !ok || errObj["error"] != "ERR x" {
			t.Errorf("items[2] = %#v", items[2])
		}
	})

	t.Run("error reply status", func(t *testing.T) {
		got, err := enc.Encode("INCR", resp.Error("ERR bad"), rc(command.FormatMsgPack))
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if got.Status != http.StatusInternalServerError {
			t.Errorf("status = %d", got.Status)
		}
	})

	t.Run("excessive nesting", func(t *testing.T) {
		v := resp.Array()
		for i := 0; i <= maxMsgPackDepth+1; i++ {
			v = resp.Array(v)
		}
		_, err := enc.Encode("X", v, rc(command.FormatMsgPack))
		if !errors.Is(err, ErrEncoding) {
			t.Errorf("error = %v, want ErrEncoding", err)
		}
	})
}

func TestEncodeError(t *testing.T) {
	got, err := New(BinaryBase64).EncodeError("GET", "ERR wrong type", rc(command.FormatJSON))
	if err != nil {
		t.Fatalf("EncodeError() error = %v", err)
	}
	if got.Status != http.StatusInternalServerError {
		t.Errorf("status = %d", got.Status)
	}
	if string(got.Body) != `{"GET":{"error":"ERR wrong type"}}` {
		t.Errorf("body = %s", got.Body)
	}
}

func TestEncodeMessage(t *testing.T) {
	enc := New(BinaryBase64)

	tests := []struct {
		name   string
		msg    Message
		format command.OutputFormat
		want   string
	}{
		{"json", Message{Channel: "ch", Payload: []byte("hi")}, command.FormatJSON, `{"message":"ch","payload":"hi"}`},
		{"json pattern", Message{Channel: "news.1", Pattern: "news.*", Payload: []byte("x")}, command.FormatJSON, `{"message":"news.1","pattern":"news.*","payload":"x"}`},
		{"raw", Message{Channel: "ch", Payload: []byte("hi")}, command.FormatRaw, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.EncodeMessage(tt.msg, tt.format)
			if err != nil {
				t.Fatalf("EncodeMessage() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("msgpack", func(t *testing.T) {
		got, err := enc.EncodeMessage(Message{Channel: "ch", Payload: binaryPayload}, command.FormatMsgPack)
		if err != nil {
			t.Fatalf("EncodeMessage() error = %v", err)
		}
		m := decodeMsgPack(t, got)
		if m["message"] != "ch" {
			t.Errorf("message = %#v", m["message"])
		}
		if b, ok := m["payload"].([]byte); !ok || !bytes.Equal(b, binaryPayload) {
			t.Errorf("payload = %#v", m["payload"])
		}
		if _, ok := m["pattern"]; ok {
			t.Errorf("unexpected pattern key")
		}
	})
}
