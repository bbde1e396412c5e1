// Package server provides the HTTP server of the relay.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"

	"mercator-hq/difyrelay/pkg/config"
	"mercator-hq/difyrelay/pkg/proxy/handlers"
	"mercator-hq/difyrelay/pkg/proxy/middleware"
	"mercator-hq/difyrelay/pkg/relay"
	"mercator-hq/difyrelay/pkg/telemetry/metrics"
	"mercator-hq/difyrelay/pkg/telemetry/tracing"
)

// Dependencies are the components the server routes requests to.
type Dependencies struct {
	// Pipeline relays chat completions to the upstream.
	Pipeline *relay.Pipeline

	// Sessions resolves session keys.
	Sessions handlers.SessionStore

	// Upstream reports upstream health for the readiness probe.
	Upstream handlers.UpstreamHealth

	// Metrics is served on the metrics path when set.
	Metrics *metrics.Collector

	// Tracer opens a server span per request. Nil only propagates incoming
	// trace context.
	Tracer *tracing.Tracer

	// Config supplies per-request relay settings. Nil reads the global
	// configuration.
	Config handlers.ConfigSource
}

// Server is the HTTP front end of the relay.
type Server struct {
	config         *config.ProxyConfig
	securityConfig *config.SecurityConfig
	metricsConfig  *config.MetricsConfig
	deps           Dependencies
	httpServer     *http.Server
	shutdownOnce   sync.Once
	mu             sync.RWMutex
	isRunning      bool
	addr           net.Addr
}

// NewServer creates a new relay server.
func NewServer(cfg *config.ProxyConfig, securityCfg *config.SecurityConfig, metricsCfg *config.MetricsConfig, deps Dependencies) *Server {
	return &Server{
		config:         cfg,
		securityConfig: securityCfg,
		metricsConfig:  metricsCfg,
		deps:           deps,
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. Cancelling ctx shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	if s.securityConfig.TLS.Enabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			s.setRunning(false)
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.setRunning(false)
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting relay server",
			"address", ln.Addr().String(),
			"tls_enabled", s.securityConfig.TLS.Enabled,
		)

		var err error
		if s.securityConfig.TLS.Enabled {
			err = s.httpServer.ServeTLS(ln,
				s.securityConfig.TLS.CertFile,
				s.securityConfig.TLS.KeyFile,
			)
		} else {
			err = s.httpServer.Serve(ln)
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.setRunning(false)
		return err
	}
}

// Shutdown gracefully shuts down the server. Open streams get up to
// ShutdownTimeout to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if !s.IsRunning() {
			return
		}

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.setRunning(false)
		slog.Info("relay server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	chatHandler := handlers.NewChatHandler(s.deps.Pipeline, s.deps.Sessions, s.deps.Metrics, s.deps.Config)
	healthHandler := handlers.NewHealthHandler()
	readyHandler := handlers.NewReadyHandler(s.deps.Upstream, s.deps.Sessions, s.deps.Metrics)

	mux.Handle("/v1/chat/completions", chatHandler)
	mux.Handle("/chat/completions", chatHandler)
	mux.Handle("/health", healthHandler)
	mux.Handle("/ready", readyHandler)

	if s.deps.Metrics != nil && s.metricsConfig != nil && s.metricsConfig.Enabled {
		mux.Handle(s.metricsConfig.Path, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux

	// CORS middleware
	handler = middleware.CORSMiddleware(middleware.CORSConfigFrom(s.config.CORS))(handler)

	// Server span, continuing the caller's trace
	handler = s.deps.Tracer.HTTPMiddleware(handler)

	// Logging middleware; successful probes and scrapes log at debug
	quiet := []string{"/health", "/ready"}
	if s.metricsConfig != nil && s.metricsConfig.Enabled {
		quiet = append(quiet, s.metricsConfig.Path)
	}
	handler = middleware.Logging(quiet...)(handler)

	// Request ID middleware, outside logging so every line carries the ID
	handler = middleware.RequestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// configureTLS configures TLS settings.
func (s *Server) configureTLS() (*tls.Config, error) {
	tlsCfg := s.securityConfig.TLS

	if tlsCfg.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if tlsCfg.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}

	if _, err := os.Stat(tlsCfg.CertFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS cert file not found: %s", tlsCfg.CertFile)
	}
	if _, err := os.Stat(tlsCfg.KeyFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS key file not found: %s", tlsCfg.KeyFile)
	}

	minVersion, err := parseTLSVersion(tlsCfg.MinVersion)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{MinVersion: minVersion}
	if minVersion < tls.VersionTLS13 {
		// TLS 1.3 suites are not configurable.
		tlsConfig.CipherSuites = []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		}
	}

	return tlsConfig, nil
}

func parseTLSVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS min version %q", v)
	}
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.isRunning = running
	s.mu.Unlock()
}
