package proxy

import (
	"errors"

	"mercator-hq/difyrelay/pkg/proxy/types"
	"mercator-hq/difyrelay/pkg/relay"
	"mercator-hq/difyrelay/pkg/session"
)

// HandleError maps an error raised before relaying starts to the OpenAI
// error envelope the client receives. Errors it does not recognise become a
// generic 500 so internal details never reach the client.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.ToErrorResponse()
	case errors.Is(err, relay.ErrNoUserMessage):
		return types.NewInvalidRequestError("No user message provided", "messages", types.CodeMissingField)
	case errors.Is(err, session.ErrBusy):
		return types.NewConflictError("This session already has a response in progress. Wait for it to finish or send the reset command.")
	default:
		return types.NewServerError("An internal error occurred. Please try again later.")
	}
}
