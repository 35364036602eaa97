package proxy

import (
	"context"
	"errors"

	"mercator-hq/webdis/pkg/acl"
	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/encoder"
	"mercator-hq/webdis/pkg/pool"
	"mercator-hq/webdis/pkg/proxy/types"
	"mercator-hq/webdis/pkg/pubsub"
)

// HandleError maps an error from parsing, ACL evaluation, dispatch or
// encoding to an error response. Backend error replies never get here;
// they are encoded like any other reply.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var denied *acl.DeniedError
	if errors.As(err, &denied) {
		return types.NewErrorResponse(
			err.Error(),
			types.ErrorTypePermissionDenied,
			types.CodeACLDenied,
		).WithCommand(denied.Command)
	}

	switch {
	case errors.Is(err, command.ErrMalformedCommand),
		errors.Is(err, pubsub.ErrNoChannels):
		return types.NewInvalidRequestError(err.Error())

	case errors.Is(err, command.ErrRequestTooLarge):
		return types.NewErrorResponse(err.Error(), types.ErrorTypeRequestTooLarge, types.CodeRequestTooLarge)

	case errors.Is(err, command.ErrURITooLong):
		return types.NewErrorResponse(err.Error(), types.ErrorTypeURITooLong, types.CodeURITooLong)

	case errors.Is(err, pool.ErrPoolExhausted):
		return types.NewServiceUnavailableError(err.Error(), types.CodePoolExhausted)

	case errors.Is(err, pool.ErrBackendUnavailable),
		errors.Is(err, pool.ErrPoolClosed),
		errors.Is(err, pubsub.ErrBridgeClosed),
		errors.Is(err, context.DeadlineExceeded):
		return types.NewServiceUnavailableError(err.Error(), types.CodeBackendUnavailable)

	case errors.Is(err, encoder.ErrEncoding):
		return types.NewErrorResponse(err.Error(), types.ErrorTypeServerError, types.CodeEncodingError)
	}

	return types.NewServerError("An internal error occurred. Please try again later.")
}

// StatusCode returns the HTTP status HandleError would produce for err.
func StatusCode(err error) int {
	return HandleError(err).Error.HTTPStatusCode()
}
