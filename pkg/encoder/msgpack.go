package encoder

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"

	"mercator-hq/webdis/pkg/resp"
)

// maxMsgPackDepth guards against pathological nesting in array replies.
const maxMsgPackDepth = 512

func encodeMsgPack(name string, v resp.Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeMapLen(1); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(name); err != nil {
		return nil, err
	}
	if err := encodeMsgPackValue(enc, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeMsgPackValue mirrors the JSON tree, except that bulk replies which
// are not valid UTF-8 go out as bin rather than str so no bytes are lost.
func encodeMsgPackValue(enc *msgpack.Encoder, v resp.Value, depth int) error {
	if depth > maxMsgPackDepth {
		return fmt.Errorf("reply nested deeper than %d", maxMsgPackDepth)
	}

	switch v.Kind {
	case resp.KindStatus:
		return enc.EncodeString(string(v.Str))
	case resp.KindError:
		if err := enc.EncodeMapLen(1); err != nil {
			return err
		}
		if err := enc.EncodeString("error"); err != nil {
			return err
		}
		return enc.EncodeString(string(v.Str))
	case resp.KindInteger:
		return enc.EncodeInt(v.Int)
	case resp.KindBulk:
		return encodeMsgPackBytes(enc, v.Str)
	case resp.KindArray:
		if err := enc.EncodeArrayLen(len(v.Array)); err != nil {
			return err
		}
		for _, elem := range v.Array {
			if err := encodeMsgPackValue(enc, elem, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.EncodeNil()
	}
}

func encodeMsgPackBytes(enc *msgpack.Encoder, b []byte) error {
	if utf8.Valid(b) {
		return enc.EncodeString(string(b))
	}
	return enc.EncodeBytes(b)
}

func encodeMsgPackMessage(m Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	n := 2
	if m.Pattern != "" {
		n = 3
	}
	if err := enc.EncodeMapLen(n); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("message"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(m.Channel); err != nil {
		return nil, err
	}
	if m.Pattern != "" {
		if err := enc.EncodeString("pattern"); err != nil {
			return nil, err
		}
		if err := enc.EncodeString(m.Pattern); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeString("payload"); err != nil {
		return nil, err
	}
	if err := encodeMsgPackBytes(enc, m.Payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
