package handlers

import (
	"errors"
	"net/http"
	"time"

	"mercator-hq/difyrelay/pkg/config"
	"mercator-hq/difyrelay/pkg/proxy"
	"mercator-hq/difyrelay/pkg/proxy/types"
	"mercator-hq/difyrelay/pkg/relay"
	"mercator-hq/difyrelay/pkg/session"
	"mercator-hq/difyrelay/pkg/telemetry/logging"
	"mercator-hq/difyrelay/pkg/telemetry/metrics"
	"mercator-hq/difyrelay/pkg/telemetry/tracing"
)

// ChatHandler handles OpenAI-compatible chat completion requests by relaying
// them through a Pipeline.
type ChatHandler struct {
	pipeline *relay.Pipeline
	sessions SessionStore
	metrics  *metrics.Collector
	config   ConfigSource
}

// NewChatHandler creates a new chat completion handler. Relay and session
// settings are read from cfg on every request so a configuration reload
// applies to the next request. A nil cfg reads the global configuration.
func NewChatHandler(pipeline *relay.Pipeline, sessions SessionStore, m *metrics.Collector, cfg ConfigSource) *ChatHandler {
	if cfg == nil {
		cfg = config.GetConfig
	}
	return &ChatHandler{
		pipeline: pipeline,
		sessions: sessions,
		metrics:  m,
		config:   cfg,
	}
}

// ServeHTTP implements http.Handler for chat completions.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if r.Method != http.MethodPost {
		proxy.WriteErrorResponse(w, types.NewErrorResponse(
			"Method not allowed. Use POST.",
			types.ErrorTypeMethodNotAllowed,
			"",
			"",
		))
		return
	}

	cfg := h.config()
	if cfg == nil {
		proxy.WriteErrorResponse(w, types.NewServiceUnavailableError("Configuration not loaded"))
		return
	}

	requestID := logging.GetRequestID(r.Context())
	if requestID == "" {
		requestID = proxy.ExtractRequestID(r)
	}
	ctx := logging.WithRequestID(r.Context(), requestID)

	req, err := proxy.ParseChatCompletionRequest(r, cfg.Proxy.MaxRequestBytes)
	if err != nil {
		logging.FromContext(ctx).Warn("invalid chat completion request", "error", err)
		h.reject(w, metrics.ModeComplete, err, started)
		return
	}

	mode := metrics.ModeComplete
	if req.Stream {
		mode = metrics.ModeStream
	}

	if req.Model == "" {
		req.Model = cfg.Relay.DefaultModel
	}

	key := proxy.ExtractSessionKey(r, cfg.Sessions.Header, req, cfg.Sessions.DefaultKey)
	ctx = logging.WithSession(ctx, key)
	ctx = logging.WithModel(ctx, req.Model)
	logger := logging.FromContext(ctx)

	logger.Debug("processing chat completion request",
		"request", proxy.ExtractRequestMetadata(r, req, requestID, key),
		"trace_id", tracing.TraceID(ctx),
	)

	sess := h.sessions.Get(key)

	if relay.IsReset(req.Messages, cfg.Relay.ResetCommand) {
		// The acknowledgement is framed as a stream whatever the request asked for.
		if err := h.pipeline.Reset(ctx, sess, req.Model, cfg.Relay.ResetMessage, proxy.NewSSEWriter(w)); err != nil {
			logger.Debug("failed to write reset acknowledgement", "error", err)
		}
		return
	}

	query, err := relay.LastUserQuery(req.Messages)
	if err != nil {
		logger.Warn("rejecting request without user message")
		h.reject(w, mode, err, started)
		return
	}

	run, err := sess.Begin()
	if err != nil {
		logger.Warn("session busy", "error", err)
		h.reject(w, mode, err, started)
		return
	}

	relayReq := &relay.Request{
		Model:   req.Model,
		Query:   query,
		Markers: cfg.Relay.Markers,
	}

	if req.Stream {
		h.stream(w, r.WithContext(ctx), run, relayReq, started)
		return
	}
	h.complete(w, r.WithContext(ctx), run, relayReq)
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, run *session.Run, req *relay.Request, started time.Time) {
	sw := proxy.NewSSEWriter(w)
	err := h.pipeline.Stream(r.Context(), run, req, sw)
	if err != nil && !sw.Started() {
		h.reject(w, metrics.ModeStream, err, started)
	}
}

func (h *ChatHandler) complete(w http.ResponseWriter, r *http.Request, run *session.Run, req *relay.Request) {
	resp, err := h.pipeline.Complete(r.Context(), run, req)
	if err != nil {
		// The failure is reported in the body; the caller always gets a 200.
		if writeErr := proxy.WriteRelayError(w, relay.FailureMessage(err)); writeErr != nil {
			logging.FromContext(r.Context()).Debug("failed to write error response", "error", writeErr)
		}
		return
	}

	if err := proxy.WriteJSONResponse(w, http.StatusOK, resp); err != nil {
		logging.FromContext(r.Context()).Warn("failed to write completion response", "error", err)
	}
}

// reject writes an error envelope for a request that never reached the
// upstream.
func (h *ChatHandler) reject(w http.ResponseWriter, mode string, err error, started time.Time) {
	status := metrics.StatusInvalidRequest
	if errors.Is(err, session.ErrBusy) {
		status = metrics.StatusBusy
	}
	h.metrics.RecordRequest(mode, status, time.Since(started))

	proxy.WriteErrorResponse(w, proxy.HandleError(err))
}
