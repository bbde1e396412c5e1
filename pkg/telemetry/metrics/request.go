package metrics

import (
	"time"

	"mercator-hq/difyrelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestMetrics tracks chat requests.
//
// Metrics:
//   - difyrelay_requests_total: request count by mode and status
//   - difyrelay_request_duration_seconds: request duration by mode
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates request metrics registered with registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	factory := promauto.With(registry)

	return &RequestMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of chat requests handled",
		}, []string{"mode", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of chat requests in seconds, from arrival to the last byte written",
			Buckets:   cfg.RequestDurationBuckets,
		}, []string{"mode"}),
	}
}

// RecordRequest records one finished request.
func (rm *RequestMetrics) RecordRequest(mode, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(mode, status).Inc()
	rm.requestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}
