package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted is returned when no connection frees up before the
	// checkout timeout.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrBackendUnavailable is returned when a connection to the backend
	// cannot be established or fails mid-command.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrPoolClosed is returned by Checkout after Close.
	ErrPoolClosed = errors.New("pool closed")
)

// HandshakeError is returned when the backend rejects AUTH or SELECT on a new
// connection. Retrying with the same settings cannot succeed.
type HandshakeError struct {
	Command string
	Message string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("backend rejected %s: %s", e.Command, e.Message)
}
