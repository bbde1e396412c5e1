package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mercator-hq/difyrelay/pkg/proxy/types"
)

const (
	// DefaultMaxRequestBodySize applies when no limit is configured.
	DefaultMaxRequestBodySize int64 = 10 << 20

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// ParseChatCompletionRequest decodes and validates a chat completion request
// body of at most maxBytes. A non-positive maxBytes means
// DefaultMaxRequestBodySize. Every failure is a *RequestError.
func ParseChatCompletionRequest(r *http.Request, maxBytes int64) (*types.ChatCompletionRequest, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBodySize
	}

	// One byte over the limit tells an oversized body from one that fits.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, &RequestError{
			Message: fmt.Sprintf("failed to read request body: %v", err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}
	if int64(len(body)) > maxBytes {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
			Code:    types.CodeRequestTooLarge,
			Param:   "body",
		}
	}

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{
			Message: "invalid JSON: " + describeJSONError(err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}

	if err := req.Validate(); err != nil {
		var valErr *types.ValidationError
		if errors.As(err, &valErr) {
			return nil, &RequestError{
				Message: valErr.Message,
				Code:    valErr.Code,
				Param:   valErr.Field,
			}
		}
		return nil, err
	}

	return &req, nil
}

// describeJSONError turns decoder errors into messages that point at the
// problem without echoing the body.
func describeJSONError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "unexpected end of input"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("%v at offset %d", syntaxErr, syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q must be %s, not %s", typeErr.Field, typeErr.Type, typeErr.Value)
	default:
		return err.Error()
	}
}

// ExtractRequestID returns the caller's X-Request-ID, or "".
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// ExtractSessionKey picks the session a request belongs to: the value of
// header, then the request's user field, then defaultKey.
func ExtractSessionKey(r *http.Request, header string, req *types.ChatCompletionRequest, defaultKey string) string {
	if header != "" {
		if key := strings.TrimSpace(r.Header.Get(header)); key != "" {
			return key
		}
	}
	if req != nil {
		if key := strings.TrimSpace(req.User); key != "" {
			return key
		}
	}
	return defaultKey
}

// RequestError is a request the relay refuses before touching the session.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts the error to an OpenAI error envelope.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	if e.Code == types.CodeRequestTooLarge {
		return types.NewRequestTooLargeError(e.Message)
	}
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}
