package types

import "net/http"

// ErrorResponse is the OpenAI error envelope. Every error the relay returns
// before a response has started uses it, so OpenAI SDKs surface the message.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the body of an ErrorResponse.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Error types and the HTTP status each maps to.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error" // 400
	ErrorTypeNotFound           = "not_found"             // 404
	ErrorTypeMethodNotAllowed   = "method_not_allowed"    // 405
	ErrorTypeConflict           = "conflict_error"        // 409
	ErrorTypeRequestTooLarge    = "request_too_large"     // 413
	ErrorTypeServerError        = "server_error"          // 500
	ErrorTypeServiceUnavailable = "service_unavailable"   // 503
)

var statusByType = map[string]int{
	ErrorTypeInvalidRequest:     http.StatusBadRequest,
	ErrorTypeNotFound:           http.StatusNotFound,
	ErrorTypeMethodNotAllowed:   http.StatusMethodNotAllowed,
	ErrorTypeConflict:           http.StatusConflict,
	ErrorTypeRequestTooLarge:    http.StatusRequestEntityTooLarge,
	ErrorTypeServerError:        http.StatusInternalServerError,
	ErrorTypeServiceUnavailable: http.StatusServiceUnavailable,
}

// Error codes.
const (
	CodeMissingField       = "missing_field"
	CodeInvalidValue       = "invalid_value"
	CodeInvalidJSON        = "invalid_json"
	CodeRequestTooLarge    = "request_too_large"
	CodeSessionBusy        = "session_busy"
	CodeServiceUnavailable = "service_unavailable"
	CodeInternalError      = "internal_error"
)

// NewErrorResponse creates an error envelope.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError is a 400 naming the offending parameter.
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewRequestTooLargeError is a 413 for an oversized body.
func NewRequestTooLargeError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeRequestTooLarge, "body", CodeRequestTooLarge)
}

// NewConflictError is a 409 for a session that already has a run.
func NewConflictError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeConflict, "", CodeSessionBusy)
}

// NewServerError is a 500 with a message safe to show clients.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewServiceUnavailableError is a 503.
func NewServiceUnavailableError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, "", CodeServiceUnavailable)
}

// HTTPStatusCode returns the status for the error type. Unknown types are
// server errors.
func (e *ErrorDetail) HTTPStatusCode() int {
	if status, ok := statusByType[e.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}
