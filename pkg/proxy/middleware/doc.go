// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// This package implements middleware functions that handle common functionality
// across all HTTP requests: request ID propagation, access logging, CORS, and
// panic recovery.
//
// # Middleware Chain
//
// The server chains middleware in this order, with the tracing span from
// telemetry/tracing between Logging and CORS:
//
//	handler = Recovery(RequestID(Logging(CORS(handler))))
//
// RequestID wraps Logging so the completion line carries the ID, and
// Recovery sits outermost so a panic in any layer still produces a
// response.
//
// # Request ID
//
// RequestIDMiddleware keeps a caller-supplied X-Request-ID of up to 128
// printable ASCII characters and otherwise generates a UUID. The ID is stored in the logging context (see
// telemetry/logging.WithRequestID), so loggers obtained with
// logging.FromContext carry it automatically, and it is echoed in the
// response header.
//
// # Logging
//
// Logging records one "request completed" entry per request with method,
// path, status, response size and latency. Paths passed to Logging log
// successful requests at debug. The wrapped response
// writer forwards Flush, which Server-Sent Events responses depend on.
//
// # CORS
//
// CORSMiddleware is configured from the proxy.cors section:
//
//	proxy:
//	  cors:
//	    enabled: true
//	    allowed_origins: ["https://chat.example.com"]
//	    allowed_headers: ["Authorization", "Content-Type", "X-Session-ID"]
//	    max_age: 3600
//
// # Recovery
//
// RecoveryMiddleware converts panics into a 500 response in OpenAI error
// format. The stack trace is logged but not exposed to clients. Once a
// response has started, as with a stream, the connection is aborted
// instead.
package middleware
