package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseFrame parses a WebSocket text frame of the form
// ["CMD", "arg0", ..., "argN"]. Numbers are accepted as arguments and keep
// their literal text, so ["INCRBY","k",5] sends "5".
func ParseFrame(data []byte) (Command, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return Command{}, fmt.Errorf("%w: frame is not a JSON array: %v", ErrMalformedCommand, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Command{}, fmt.Errorf("%w: trailing data after array", ErrMalformedCommand)
	}
	if len(raw) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrMalformedCommand)
	}

	name, ok := raw[0].(string)
	if !ok || name == "" {
		return Command{}, fmt.Errorf("%w: command name must be a non-empty string", ErrMalformedCommand)
	}

	args := make([][]byte, 0, len(raw)-1)
	for i, el := range raw[1:] {
		switch v := el.(type) {
		case string:
			args = append(args, []byte(v))
		case json.Number:
			args = append(args, []byte(v.String()))
		default:
			return Command{}, fmt.Errorf("%w: argument %d must be a string or number", ErrMalformedCommand, i)
		}
	}

	return Command{Name: name, Args: args}, nil
}
