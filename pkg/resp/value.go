// Package resp implements the subset of the RESP2 wire protocol the gateway
// needs to talk to the backend store.
//
// Replies are modeled as a closed set of kinds (see Kind). Callers switch on
// Value.Kind rather than type-asserting, so every reply shape is handled
// exhaustively by the encoder.
package resp

import (
	"strconv"
)

// Kind identifies the shape of a backend reply.
type Kind uint8

const (
	// KindStatus is a simple string reply such as "+OK".
	KindStatus Kind = iota
	// KindError is an error reply such as "-ERR unknown command".
	KindError
	// KindInteger is a signed 64-bit integer reply.
	KindInteger
	// KindBulk is a binary-safe byte string reply.
	KindBulk
	// KindArray is a multi-bulk reply whose elements are Values.
	KindArray
	// KindNil is a null bulk or null array reply.
	KindNil
)

// Wire prefixes for each reply kind.
const (
	StatusPrefix  = '+'
	ErrorPrefix   = '-'
	IntegerPrefix = ':'
	BulkPrefix    = '$'
	ArrayPrefix   = '*'
)

var crlf = []byte("\r\n")

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindArray:
		return "array"
	case KindNil:
		return "nil"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single backend reply.
//
// Only the field matching Kind is meaningful: Str for Status, Error and Bulk,
// Int for Integer, Array for Array. Nil carries no payload.
type Value struct {
	Kind  Kind
	Str   []byte
	Int   int64
	Array []Value
}

// Status builds a status reply.
func Status(s string) Value { return Value{Kind: KindStatus, Str: []byte(s)} }

// Error builds an error reply.
func Error(msg string) Value { return Value{Kind: KindError, Str: []byte(msg)} }

// Integer builds an integer reply.
func Integer(n int64) Value { return Value{Kind: KindInteger, Int: n} }

// Bulk builds a bulk reply. The slice is not copied.
func Bulk(b []byte) Value { return Value{Kind: KindBulk, Str: b} }

// BulkString builds a bulk reply from a string.
func BulkString(s string) Value { return Value{Kind: KindBulk, Str: []byte(s)} }

// Array builds an array reply.
func Array(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{Kind: KindArray, Array: vs}
}

// Nil builds a null reply.
func Nil() Value { return Value{Kind: KindNil} }

// IsError reports whether v is an error reply.
func (v Value) IsError() bool { return v.Kind == KindError }

// Text returns the reply rendered as text. Integers are formatted in
// decimal, nil is the empty string, arrays are not flattened.
func (v Value) Text() string {
	switch v.Kind {
	case KindStatus, KindError, KindBulk:
		return string(v.Str)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	default:
		return ""
	}
}
