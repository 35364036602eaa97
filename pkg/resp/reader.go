package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrProtocol is returned when the peer sends bytes that are not valid RESP2.
var ErrProtocol = errors.New("resp: protocol error")

// Limits guarding against hostile or corrupt replies.
const (
	maxBulkLen  = 512 << 20
	maxArrayLen = 1 << 24
	maxDepth    = 64
)

// Reader decodes replies from a buffered stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r. If r is already a *bufio.Reader it is used directly.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{br: br}
	}
	return &Reader{br: bufio.NewReader(r)}
}

// ReadValue reads exactly one reply.
func (r *Reader) ReadValue() (Value, error) {
	return r.readValue(0)
}

func (r *Reader) readValue(depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: nesting deeper than %d", ErrProtocol, maxDepth)
	}

	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}
	if len(line) == 0 {
		return Value{}, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	payload := line[1:]
	switch line[0] {
	case StatusPrefix:
		return Value{Kind: KindStatus, Str: clone(payload)}, nil
	case ErrorPrefix:
		return Value{Kind: KindError, Str: clone(payload)}, nil
	case IntegerPrefix:
		n, err := strconv.ParseInt(string(payload), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad integer %q", ErrProtocol, payload)
		}
		return Integer(n), nil
	case BulkPrefix:
		n, err := parseLen(payload, maxBulkLen)
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Nil(), nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(r.br, buf); err != nil {
			return Value{}, err
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return Value{}, fmt.Errorf("%w: bulk not terminated by CRLF", ErrProtocol)
		}
		return Bulk(buf[:n]), nil
	case ArrayPrefix:
		n, err := parseLen(payload, maxArrayLen)
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Nil(), nil
		}
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			item, err := r.readValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Kind: KindArray, Array: items}, nil
	default:
		return Value{}, fmt.Errorf("%w: unexpected prefix %q", ErrProtocol, line[0])
	}
}

// readLine returns the next CRLF-terminated line without the terminator.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: line too long", ErrProtocol)
		}
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

func parseLen(b []byte, limit int) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("%w: bad length %q", ErrProtocol, b)
	}
	if n < -1 || n > limit {
		return 0, fmt.Errorf("%w: length %d out of range", ErrProtocol, n)
	}
	return n, nil
}

// ReadSlice reuses the bufio buffer, so line payloads must be copied.
func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
