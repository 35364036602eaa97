package types

import "net/http"

// ErrorResponse is the body written for failures that happen before a
// command produces a reply: parse errors, ACL denials, size limits and
// pool or backend unavailability.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error; see the ErrorType constants.
	Type string `json:"type"`

	// Command is the command the error relates to, when known.
	Command string `json:"command,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error types.
const (
	// ErrorTypeInvalidRequest indicates a malformed command (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypePermissionDenied indicates an ACL denial (403).
	ErrorTypePermissionDenied = "permission_denied"

	// ErrorTypeRequestTooLarge indicates an oversized body (413).
	ErrorTypeRequestTooLarge = "request_too_large"

	// ErrorTypeURITooLong indicates an oversized request URI (414).
	ErrorTypeURITooLong = "uri_too_long"

	// ErrorTypeServerError indicates an internal or encoding failure (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeServiceUnavailable indicates pool exhaustion or an
	// unreachable backend (503).
	ErrorTypeServiceUnavailable = "service_unavailable"
)

// Error codes.
const (
	CodeMalformedCommand   = "malformed_command"
	CodeACLDenied          = "acl_denied"
	CodeRequestTooLarge    = "request_too_large"
	CodeURITooLong         = "uri_too_long"
	CodePoolExhausted      = "pool_exhausted"
	CodeBackendUnavailable = "backend_unavailable"
	CodeEncodingError      = "encoding_error"
	CodeInternalError      = "internal_error"
	CodeWebSocketsDisabled = "websockets_disabled"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates a 400 error response.
func NewInvalidRequestError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, CodeMalformedCommand)
}

// NewServerError creates a 500 error response.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, CodeInternalError)
}

// NewServiceUnavailableError creates a 503 error response.
func NewServiceUnavailableError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, code)
}

// WithCommand records the command name on the response.
func (e *ErrorResponse) WithCommand(name string) *ErrorResponse {
	e.Error.Command = name
	return e
}

// HTTPStatusCode returns the status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypePermissionDenied:
		return http.StatusForbidden
	case ErrorTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeURITooLong:
		return http.StatusRequestURITooLong
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
