package middleware

import (
	"context"
	"net/http"

	"mercator-hq/difyrelay/pkg/telemetry/logging"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header used for request IDs.
	RequestIDHeader = "X-Request-ID"

	// maxRequestIDLength bounds caller-supplied IDs so they stay usable as
	// log fields.
	maxRequestIDLength = 128
)

// RequestIDMiddleware tags every request with an ID and echoes it in the
// X-Request-ID response header. A caller-supplied ID is kept when it is
// short printable ASCII; anything else is replaced by a fresh UUID.
//
// The ID lands in the logging context, so loggers built with
// logging.FromContext carry it.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
			r.Header.Set(RequestIDHeader, requestID)
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	})
}

// GetRequestID returns the request ID stored by RequestIDMiddleware, or ""
// outside of it.
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
