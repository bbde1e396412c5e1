package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/difyrelay/pkg/telemetry/logging"
)

// LoggingMiddleware logs every request with Logging's defaults.
func LoggingMiddleware(next http.Handler) http.Handler {
	return Logging()(next)
}

// Logging returns middleware that logs one "request completed" line per
// request with its status, size and latency. 5xx responses are logged at
// error level and 4xx at warn. Successful requests to quietPaths, such as
// probe endpoints, drop to debug so they do not flood the log.
//
// The logger comes from the request context, so the middleware must run
// inside RequestIDMiddleware for lines to carry the request ID.
func Logging(quietPaths ...string) func(http.Handler) http.Handler {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			logger := logging.FromContext(r.Context())
			rw := newResponseWriter(w)

			logger.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			case quiet[r.URL.Path]:
				level = slog.LevelDebug
			}

			// logger already carries the request fields.
			logger.Log(context.Background(), level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"bytes", rw.bytes,
				"latency_ms", time.Since(started).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
