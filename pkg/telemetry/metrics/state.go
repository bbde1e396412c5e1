package metrics

import (
	"mercator-hq/difyrelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StateMetrics holds gauges describing current relay state.
//
// Metrics:
//   - difyrelay_sessions_active: registered sessions
//   - difyrelay_upstream_healthy: upstream health (1=healthy, 0=unhealthy)
type StateMetrics struct {
	sessions        prometheus.Gauge
	upstreamHealthy prometheus.Gauge
}

// NewStateMetrics creates and registers state gauges with the provided registry.
func NewStateMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StateMetrics {
	sm := &StateMetrics{
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_active",
				Help:      "Number of registered conversation sessions",
			},
		),

		upstreamHealthy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_healthy",
				Help:      "Upstream health status (1=healthy, 0=unhealthy)",
			},
		),
	}

	registry.MustRegister(sm.sessions, sm.upstreamHealthy)

	// Healthy until proven otherwise.
	sm.upstreamHealthy.Set(1)

	return sm
}

// SetSessions sets the session gauge.
func (sm *StateMetrics) SetSessions(n int) {
	sm.sessions.Set(float64(n))
}

// SetUpstreamHealthy sets the upstream health gauge.
func (sm *StateMetrics) SetUpstreamHealthy(healthy bool) {
	if healthy {
		sm.upstreamHealthy.Set(1)
		return
	}
	sm.upstreamHealthy.Set(0)
}
