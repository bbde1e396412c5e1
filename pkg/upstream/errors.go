package upstream

import (
	"fmt"
	"time"
)

// StatusError is returned when the upstream answers with a non-success HTTP
// status.
type StatusError struct {
	// StatusCode is the HTTP status code returned by the upstream.
	StatusCode int

	// Message is the (possibly truncated) response body.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// AuthError is returned when the upstream rejects the API key (HTTP 401 or 403).
type AuthError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// TimeoutError is returned when the upstream does not answer in time.
type TimeoutError struct {
	// Timeout is the configured limit, zero if the deadline came from the caller.
	Timeout time.Duration

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("upstream request timeout after %s", e.Timeout)
	}
	return "upstream request timeout"
}

// Unwrap returns the underlying error for error chain support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// TransportError is returned when the upstream cannot be reached at all.
type TransportError struct {
	URL   string
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s unreachable: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// StreamError is returned when reading an already open event stream fails.
type StreamError struct {
	// Message describes the failed operation.
	Message string

	// Cause is the underlying read error.
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream stream error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream stream error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}
