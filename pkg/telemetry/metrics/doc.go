// Package metrics provides Prometheus metrics for the relay.
//
// # Metrics
//
//   - requests_total{mode,status}: chat requests by mode (stream, complete,
//     reset) and outcome
//   - request_duration_seconds{mode}: request duration histogram
//   - upstream_events_total{event}: upstream events by kind
//   - malformed_events_total: upstream data lines that failed to decode
//   - chunks_emitted_total: chunks written to clients
//   - cancellations_total{reason}: runs cancelled by disconnect or reset
//   - sessions_active: registered conversation sessions
//   - upstream_healthy: 1 while the upstream client is healthy
//
// All names carry the configured namespace (default "difyrelay") and
// optional subsystem.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRequest(metrics.ModeStream, metrics.StatusSuccess, time.Second)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// A nil *Collector records nothing, which keeps tests and metric-less
// deployments free of nil checks.
package metrics
