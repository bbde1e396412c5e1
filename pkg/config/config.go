package config

import (
	"time"

	"mercator-hq/difyrelay/pkg/transducer"
)

// Config is the root configuration structure for the relay.
// It contains all configuration sections for the HTTP listener, the upstream
// chat backend, relay behaviour, session handling, telemetry, and security.
type Config struct {
	// Proxy contains HTTP server configuration including listen address,
	// timeouts, and CORS.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream contains the connection settings for the chat-messages backend.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Relay contains per-request relay behaviour: default model, the reset
	// command, and the reasoning markers to rewrite.
	Relay RelayConfig `yaml:"relay"`

	// Sessions contains conversation session keying and eviction settings.
	Sessions SessionsConfig `yaml:"sessions"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains security-related configuration for the listener.
	Security SecurityConfig `yaml:"security"`

	// Watch enables reloading the configuration file when it changes.
	// Only relay settings take effect without a restart.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ProxyConfig contains configuration for the HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "0.0.0.0:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming answers can run for minutes, so the default is no
	// timeout.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxRequestBytes limits the size of a chat completion request body.
	// Read per request, so a reload applies it.
	// Default: 10485760 (10MB)
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig lets browser front ends call the relay directly.
type CORSConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins accepts "*", exact origins such as
	// "https://chat.example.com", and single-label wildcards such as
	// "https://*.example.com".
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// Default: ["Authorization", "Content-Type", "X-Request-ID", "X-Session-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// Default: ["X-Request-ID", "X-Trace-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is how long, in seconds, browsers may cache a preflight.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials echoes the request origin instead of "*" and sets
	// Access-Control-Allow-Credentials.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// UpstreamConfig contains configuration for the chat-messages backend.
type UpstreamConfig struct {
	// BaseURL is the API root of the backend. Requests go to
	// {base_url}/chat-messages.
	// Required.
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer token sent with every upstream request.
	// Can be set via DIFYRELAY_UPSTREAM_API_KEY.
	APIKey string `yaml:"api_key"`

	// User is forwarded as the upstream end-user identifier.
	// Default: "" (omitted)
	User string `yaml:"user"`

	// Timeout bounds the wait for upstream response headers. The streamed
	// body is not subject to it. Zero means no limit.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is how many times opening a stream is retried after a
	// connection error or 5xx response.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// StopTimeout bounds each stop notification.
	// Default: 10s
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// InsecureSkipVerify disables upstream certificate verification.
	// Default: false
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// MaxIdleConns is the size of the upstream connection pool.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout closes pooled connections idle for this long.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// RelayConfig contains per-request relay behaviour. These settings are read
// for every request, so a reload applies them immediately.
type RelayConfig struct {
	// DefaultModel is echoed in responses when the request names no model.
	// Default: "o3-mini"
	DefaultModel string `yaml:"default_model"`

	// ResetCommand is the message content that resets the session instead
	// of being sent upstream.
	// Default: "clear"
	ResetCommand string `yaml:"reset_command"`

	// ResetMessage is the acknowledgement text returned after a reset.
	// Default: "对话已重置"
	ResetMessage string `yaml:"reset_message"`

	// Markers are the reasoning block delimiters to recognise and the tags
	// written in their place.
	Markers transducer.Markers `yaml:"markers"`
}

// SessionsConfig contains conversation session configuration.
type SessionsConfig struct {
	// Header is the request header that selects a session. When absent, the
	// request "user" field is used, then DefaultKey.
	// Default: "X-Session-ID"
	Header string `yaml:"header"`

	// DefaultKey is the session used by requests that name none.
	// Default: "default"
	DefaultKey string `yaml:"default_key"`

	// IdleTTL evicts sessions unused for this long. Zero keeps sessions for
	// the process lifetime.
	// Default: 24h
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// SweepSchedule is a cron expression for the eviction sweep.
	// Default: "@every 5m"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// TelemetryConfig groups logging, metrics and tracing. Changing it requires
// a restart.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the slog default logger.
type LoggingConfig struct {
	// Level is the minimum level emitted, case-insensitive.
	// Options: "debug", "info", "warn" (or "warning"), "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the handler.
	// Options: "json", "text" (or "console")
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "difyrelay"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "" (none)
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler selects the root sampling strategy. A sampled parent span is
	// always honoured.
	// Options: "always", "never", "ratio", or the OTEL_TRACES_SAMPLER names
	// "always_on", "always_off", "traceidratio" and their "parentbased_"
	// forms.
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for trace exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the service name in traces.
	// Default: "difyrelay"
	ServiceName string `yaml:"service_name"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// TLS contains TLS configuration for the listener.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	// Enabled controls whether the listener serves HTTPS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the TLS certificate file.
	// Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the TLS private key file.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`
}
