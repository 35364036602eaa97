package command

import "errors"

var (
	// ErrMalformedCommand is returned for empty or unparseable input.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrRequestTooLarge is returned when the body exceeds the configured maximum.
	ErrRequestTooLarge = errors.New("request body too large")

	// ErrURITooLong is returned when the request URI exceeds the configured maximum.
	ErrURITooLong = errors.New("request URI too long")
)
