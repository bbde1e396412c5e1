package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"mercator-hq/difyrelay/pkg/proxy/types"
	"mercator-hq/difyrelay/pkg/telemetry/logging"
)

// RecoveryMiddleware turns a handler panic into a 500 response in the
// OpenAI error format. The panic and its stack are logged; the client only
// sees a generic message.
//
// Once a response has started, typically an SSE stream, no error envelope can
// be written anymore. The connection is then aborted with
// http.ErrAbortHandler so the client observes a truncated stream rather than
// a corrupted one. A panic with http.ErrAbortHandler itself is passed on
// without logging.
//
// Example usage:
//
//	handler = RecoveryMiddleware(handler)
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logging.FromContext(r.Context()).Error("panic in handler",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"response_started", rw.written,
				"stack", string(debug.Stack()),
			)

			if rw.written {
				panic(http.ErrAbortHandler)
			}

			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(rw).Encode(types.NewServerError(
				"An internal error occurred. Please try again later.",
			))
		}()

		next.ServeHTTP(rw, r)
	})
}
