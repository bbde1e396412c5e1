package metrics

import (
	"mercator-hq/difyrelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks the relay loop.
//
// Metrics:
//   - difyrelay_upstream_events_total: decoded upstream events by kind
//   - difyrelay_malformed_events_total: data lines that failed to decode
//   - difyrelay_chunks_emitted_total: chunks written downstream
//   - difyrelay_cancellations_total: cancelled runs by reason
type RelayMetrics struct {
	eventsTotal        *prometheus.CounterVec
	malformedTotal     prometheus.Counter
	chunksTotal        prometheus.Counter
	cancellationsTotal *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics with the provided registry.
func NewRelayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_events_total",
				Help:      "Total number of upstream events received",
			},
			[]string{"event"},
		),

		malformedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "malformed_events_total",
				Help:      "Total number of upstream data lines that could not be decoded",
			},
		),

		chunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "chunks_emitted_total",
				Help:      "Total number of chunks written to clients",
			},
		),

		cancellationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cancellations_total",
				Help:      "Total number of cancelled runs",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		rm.eventsTotal,
		rm.malformedTotal,
		rm.chunksTotal,
		rm.cancellationsTotal,
	)

	return rm
}

// RecordEvent counts one upstream event.
func (rm *RelayMetrics) RecordEvent(kind string) {
	rm.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordMalformed counts one undecodable data line.
func (rm *RelayMetrics) RecordMalformed() {
	rm.malformedTotal.Inc()
}

// RecordChunk counts one emitted chunk.
func (rm *RelayMetrics) RecordChunk() {
	rm.chunksTotal.Inc()
}

// RecordCancellation counts one cancelled run.
func (rm *RelayMetrics) RecordCancellation(reason string) {
	rm.cancellationsTotal.WithLabelValues(reason).Inc()
}
