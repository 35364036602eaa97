package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/webdis/pkg/config"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "redis_port",
		Message: "must be between 1 and 65535",
	}

	expected := "config error in redis_port: must be between 1 and 65535"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestWrapConfigError(t *testing.T) {
	underlying := errors.New("no such file")
	err := WrapConfigError("webdis.json", underlying)

	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should see the wrapped error")
	}
	expected := "config error: failed to load webdis.json: no such file"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("run", underlyingErr)

	expected := "command run failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() should work with CommandError.Unwrap()")
	}
}

func TestExitCode(t *testing.T) {
	validation := config.ValidationError{Errors: []config.FieldError{{Field: "http_port", Message: "out of range"}}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitFailure},
		{"command error", NewCommandError("run", errors.New("listen failed")), ExitFailure},
		{"config error", NewConfigError("output", "bad"), ExitConfig},
		{"wrapped validation error", fmt.Errorf("load: %w", validation), ExitConfig},
		{"validation inside command error", NewCommandError("validate", validation), ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
