// Package telemetry groups the observability packages of the relay.
//
// # Components
//
//   - logging: slog setup with request-scoped fields and credential redaction
//   - metrics: Prometheus metrics for requests, upstream events and sessions
//   - tracing: OpenTelemetry spans for relay cycles and upstream calls
//
// # Usage
//
//	logger, _ := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, _ := tracing.New(&cfg.Telemetry.Tracing)
//	defer tracer.Shutdown(context.Background())
//
// Metrics and tracing are optional everywhere: a nil *metrics.Collector and
// a nil *tracing.Tracer are valid and record nothing.
//
// # Credential Protection
//
// Log attributes are scrubbed before they are written:
//
//   - Bearer tokens: Bearer abc.def → Bearer ***
//   - Application keys: app-abcdef123456 → app-***
//   - Values under sensitive keys (api_key, authorization) keep a 4-character prefix
package telemetry
