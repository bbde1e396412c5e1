// Package server provides the HTTP server of the relay.
//
// This package ties together the handlers, middleware and telemetry and
// manages the server lifecycle: start, TLS termination and graceful
// shutdown.
//
// # Basic Usage
//
//	srv := server.NewServer(&cfg.Proxy, &cfg.Security, &cfg.Telemetry.Metrics, server.Dependencies{
//	    Pipeline: pipeline,
//	    Sessions: registry,
//	    Upstream: client,
//	    Metrics:  collector,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled. Signal handling is left to the caller
// (see cli.ShutdownContext).
//
// # Graceful Shutdown
//
// The shutdown process:
//  1. Stops accepting new connections
//  2. Waits for active requests, including open streams, up to
//     proxy.shutdown_timeout
//  3. Returns an error if streams were still open at the deadline
//
// # Routes
//
//   - POST /v1/chat/completions - Chat completion (streaming and non-streaming)
//   - POST /chat/completions - Alias for clients configured without /v1
//   - GET|HEAD /health - Liveness probe with uptime (always 200)
//   - GET|HEAD /ready - Readiness probe (503 while the upstream is unhealthy)
//   - GET /metrics - Prometheus metrics, when telemetry.metrics.enabled
//
// # Middleware Chain
//
// Requests pass through the following middleware (innermost to outermost):
//  1. CORS: Adds Cross-Origin Resource Sharing headers
//  2. Tracing: Starts the server span and sets X-Trace-ID
//  3. Logging: One line per request; probes and scrapes at debug
//  4. RequestID: Keeps or generates X-Request-ID
//  5. Recovery: Recovers from panics and returns 500 error
//
// No middleware buffers the response, so Server-Sent Events frames reach
// the client as soon as the handler flushes them.
//
// # TLS Support
//
//	security:
//	  tls:
//	    enabled: true
//	    cert_file: "/path/to/cert.pem"
//	    key_file: "/path/to/key.pem"
//	    min_version: "1.2"
package server
