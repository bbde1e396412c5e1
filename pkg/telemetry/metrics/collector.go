package metrics

import (
	"time"

	"mercator-hq/difyrelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Request modes.
const (
	ModeStream   = "stream"
	ModeComplete = "complete"
	ModeReset    = "reset"
)

// Request statuses.
const (
	StatusSuccess        = "success"
	StatusUpstreamError  = "upstream_error"
	StatusDisconnected   = "disconnected"
	StatusBusy           = "busy"
	StatusInvalidRequest = "invalid_request"
)

// Cancellation reasons.
const (
	ReasonDisconnect = "disconnect"
	ReasonReset      = "reset"
)

// Collector owns the relay's Prometheus metrics. A nil *Collector is valid
// and records nothing, so components can be built without metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	relayMetrics   *RelayMetrics
	stateMetrics   *StateMetrics
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil, a fresh registry is created together with the Go
// runtime and process collectors.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "difyrelay",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		requestMetrics: NewRequestMetrics(cfg, registry),
		relayMetrics:   NewRelayMetrics(cfg, registry),
		stateMetrics:   NewStateMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRequest records a finished chat request.
//
// Parameters:
//   - mode: "stream", "complete" or "reset"
//   - status: outcome, e.g. "success", "upstream_error", "busy"
//   - duration: time from request arrival to the last byte written
func (c *Collector) RecordRequest(mode, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordRequest(mode, status, duration)
}

// RecordUpstreamEvent counts one decoded upstream event by kind.
func (c *Collector) RecordUpstreamEvent(kind string) {
	if !c.enabled() {
		return
	}
	c.relayMetrics.RecordEvent(kind)
}

// RecordMalformedEvent counts a data line that could not be decoded.
func (c *Collector) RecordMalformedEvent() {
	if !c.enabled() {
		return
	}
	c.relayMetrics.RecordMalformed()
}

// RecordChunk counts one chunk written downstream.
func (c *Collector) RecordChunk() {
	if !c.enabled() {
		return
	}
	c.relayMetrics.RecordChunk()
}

// RecordCancellation counts a cancelled run.
//
// Parameters:
//   - reason: "disconnect" or "reset"
func (c *Collector) RecordCancellation(reason string) {
	if !c.enabled() {
		return
	}
	c.relayMetrics.RecordCancellation(reason)
}

// SetActiveSessions updates the number of registered sessions.
func (c *Collector) SetActiveSessions(n int) {
	if !c.enabled() {
		return
	}
	c.stateMetrics.SetSessions(n)
}

// SetUpstreamHealthy updates the upstream health gauge.
func (c *Collector) SetUpstreamHealthy(healthy bool) {
	if !c.enabled() {
		return
	}
	c.stateMetrics.SetUpstreamHealthy(healthy)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
