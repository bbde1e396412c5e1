package config

import (
	"time"

	"mercator-hq/difyrelay/pkg/transducer"
)

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "0.0.0.0:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxRequestBytes = 10 << 20

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Upstream defaults
	DefaultUpstreamTimeout         = 60 * time.Second
	DefaultUpstreamMaxRetries      = 2
	DefaultUpstreamStopTimeout     = 10 * time.Second
	DefaultUpstreamMaxIdleConns    = 100
	DefaultUpstreamIdleConnTimeout = 90 * time.Second

	// Relay defaults
	DefaultRelayModel        = "o3-mini"
	DefaultRelayResetCommand = "clear"
	DefaultRelayResetMessage = "对话已重置"

	// Session defaults
	DefaultSessionHeader        = "X-Session-ID"
	DefaultSessionKey           = "default"
	DefaultSessionIdleTTL       = 24 * time.Hour
	DefaultSessionSweepSchedule = "@every 5m"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "difyrelay"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingServiceName = "difyrelay"

	// Security defaults
	DefaultTLSMinVersion = "1.2"
)

// DefaultRequestDurationBuckets covers relayed answers from sub-second to
// several minutes.
var DefaultRequestDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// newConfig returns a Config with the boolean fields whose default is true
// already set. YAML decoding only overwrites keys present in the file, so an
// explicit false still wins.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Proxy.CORS.Enabled = DefaultCORSEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Proxy.MaxRequestBytes == 0 {
		cfg.Proxy.MaxRequestBytes = DefaultMaxRequestBytes
	}
	applyCORSDefaults(cfg)

	// Upstream defaults
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.MaxRetries == 0 {
		cfg.Upstream.MaxRetries = DefaultUpstreamMaxRetries
	}
	if cfg.Upstream.StopTimeout == 0 {
		cfg.Upstream.StopTimeout = DefaultUpstreamStopTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultUpstreamMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultUpstreamIdleConnTimeout
	}

	// Relay defaults
	if cfg.Relay.DefaultModel == "" {
		cfg.Relay.DefaultModel = DefaultRelayModel
	}
	if cfg.Relay.ResetCommand == "" {
		cfg.Relay.ResetCommand = DefaultRelayResetCommand
	}
	if cfg.Relay.ResetMessage == "" {
		cfg.Relay.ResetMessage = DefaultRelayResetMessage
	}
	applyMarkerDefaults(&cfg.Relay.Markers)

	// Session defaults
	if cfg.Sessions.Header == "" {
		cfg.Sessions.Header = DefaultSessionHeader
	}
	if cfg.Sessions.DefaultKey == "" {
		cfg.Sessions.DefaultKey = DefaultSessionKey
	}
	if cfg.Sessions.IdleTTL == 0 {
		cfg.Sessions.IdleTTL = DefaultSessionIdleTTL
	}
	if cfg.Sessions.SweepSchedule == "" {
		cfg.Sessions.SweepSchedule = DefaultSessionSweepSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}

	// Security defaults
	if cfg.Security.TLS.MinVersion == "" {
		cfg.Security.TLS.MinVersion = DefaultTLSMinVersion
	}
}

// applyCORSDefaults applies default values to CORS configuration.
func applyCORSDefaults(cfg *Config) {
	cors := &cfg.Proxy.CORS

	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID", DefaultSessionHeader}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID", "X-Trace-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

// applyMarkerDefaults fills each unset marker independently, so a file can
// override only the output tags.
func applyMarkerDefaults(m *transducer.Markers) {
	def := transducer.DefaultMarkers()
	if m.Start == "" {
		m.Start = def.Start
	}
	if m.End == "" {
		m.End = def.End
	}
	if m.OutputStart == "" {
		m.OutputStart = def.OutputStart
	}
	if m.OutputEnd == "" {
		m.OutputEnd = def.OutputEnd
	}
}
