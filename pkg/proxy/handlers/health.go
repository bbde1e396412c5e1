package handlers

import (
	"net/http"
	"time"

	"mercator-hq/difyrelay/pkg/proxy"
	"mercator-hq/difyrelay/pkg/telemetry/metrics"
)

// probeAllowed answers 405 for anything but GET and HEAD.
func probeAllowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`
}

// HealthHandler answers liveness probes. It never consults the upstream.
type HealthHandler struct {
	started time.Time
}

// NewHealthHandler creates a liveness handler whose uptime counts from now.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now()}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !probeAllowed(w, r) {
		return
	}

	now := time.Now()
	proxy.WriteJSONResponse(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Timestamp:     now.Unix(),
	})
}

type upstreamStatus struct {
	Healthy             bool    `json:"healthy"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	TotalRequests       int64   `json:"total_requests"`
	FailedRequests      int64   `json:"failed_requests"`
	LastCheck           int64   `json:"last_check"`
	LastSuccess         int64   `json:"last_success"`
	LastError           *string `json:"last_error"`
}

type readyResponse struct {
	Status    string         `json:"status"`
	Upstream  upstreamStatus `json:"upstream"`
	Sessions  *int           `json:"sessions,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ReadyHandler answers readiness probes: 200 while the upstream is healthy,
// 503 once it has failed repeatedly. Each probe also refreshes the upstream
// health gauge.
type ReadyHandler struct {
	upstream UpstreamHealth
	sessions SessionStore
	metrics  *metrics.Collector
}

// NewReadyHandler creates a readiness handler. sessions and m may be nil.
func NewReadyHandler(up UpstreamHealth, sessions SessionStore, m *metrics.Collector) *ReadyHandler {
	return &ReadyHandler{upstream: up, sessions: sessions, metrics: m}
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !probeAllowed(w, r) {
		return
	}

	health := h.upstream.Health()
	h.metrics.SetUpstreamHealthy(health.IsHealthy)

	resp := readyResponse{
		Status: "ready",
		Upstream: upstreamStatus{
			Healthy:             health.IsHealthy,
			ConsecutiveFailures: health.ConsecutiveFailures,
			TotalRequests:       health.TotalRequests,
			FailedRequests:      health.FailedRequests,
			LastCheck:           health.LastCheck.Unix(),
			LastSuccess:         health.LastSuccessfulRequest.Unix(),
		},
		Timestamp: time.Now().Unix(),
	}
	if health.LastError != nil {
		msg := health.LastError.Error()
		resp.Upstream.LastError = &msg
	}
	if h.sessions != nil {
		n := h.sessions.Len()
		resp.Sessions = &n
	}

	status := http.StatusOK
	if !health.IsHealthy {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	proxy.WriteJSONResponse(w, status, resp)
}
