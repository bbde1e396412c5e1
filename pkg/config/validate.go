package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// maxHeaderBytesLimit is the largest max_header_bytes accepted.
const maxHeaderBytesLimit = 10 << 20

// Accepted values for enumerated settings. Tracing samplers also accept the
// OTEL_TRACES_SAMPLER spellings.
var (
	logLevels   = []string{"debug", "info", "warn", "warning", "error"}
	logFormats  = []string{"json", "text", "console"}
	tlsVersions = []string{"1.2", "1.3"}
	samplers    = []string{
		"always", "never", "ratio",
		"always_on", "always_off", "traceidratio",
		"parentbased_always_on", "parentbased_always_off", "parentbased_traceidratio",
	}
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted YAML path of the setting, e.g. "proxy.listen_address".
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError reports every invalid setting of a configuration at once.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "configuration validation failed"
	case 1:
		return "configuration validation failed: " + e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks cfg and returns a ValidationError listing every invalid
// field, or nil.
func Validate(cfg *Config) error {
	var v validator

	v.proxy(&cfg.Proxy)
	v.upstream(&cfg.Upstream)
	v.relay(&cfg.Relay)
	v.sessions(&cfg.Sessions)
	v.telemetry(&cfg.Telemetry)
	v.security(&cfg.Security)

	if len(v.errs) > 0 {
		return ValidationError{Errors: v.errs}
	}
	return nil
}

// validator accumulates field errors.
type validator struct {
	errs []FieldError
}

func (v *validator) fail(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) required(field, value, what string) bool {
	if value == "" {
		v.fail(field, "%s is required", what)
		return false
	}
	return true
}

func nonNegative[T ~int | ~int64 | ~float64](v *validator, field string, value T, what string) {
	if value < 0 {
		v.fail(field, "%s must not be negative", what)
	}
}

// oneOf checks value case-insensitively against allowed. Empty values are
// left to required.
func (v *validator) oneOf(field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	v.fail(field, "invalid value %q: must be one of %s", value, strings.Join(allowed, ", "))
}

func (v *validator) proxy(cfg *ProxyConfig) {
	if v.required("proxy.listen_address", cfg.ListenAddress, "listen address") {
		if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
			v.fail("proxy.listen_address", "invalid listen address %q: %v", cfg.ListenAddress, err)
		}
	}

	nonNegative(v, "proxy.read_timeout", cfg.ReadTimeout, "read timeout")
	nonNegative(v, "proxy.write_timeout", cfg.WriteTimeout, "write timeout")
	nonNegative(v, "proxy.idle_timeout", cfg.IdleTimeout, "idle timeout")
	nonNegative(v, "proxy.shutdown_timeout", cfg.ShutdownTimeout, "shutdown timeout")
	nonNegative(v, "proxy.max_header_bytes", cfg.MaxHeaderBytes, "max header bytes")
	nonNegative(v, "proxy.max_request_bytes", cfg.MaxRequestBytes, "max request bytes")

	if cfg.MaxHeaderBytes > maxHeaderBytesLimit {
		v.fail("proxy.max_header_bytes", "max header bytes exceeds reasonable limit (10MB)")
	}

	if cfg.CORS.Enabled {
		for i, origin := range cfg.CORS.AllowedOrigins {
			if err := checkOrigin(origin); err != nil {
				v.fail(fmt.Sprintf("proxy.cors.allowed_origins[%d]", i), "%v", err)
			}
		}
		nonNegative(v, "proxy.cors.max_age", cfg.CORS.MaxAge, "max age")
	}
}

// checkOrigin accepts "*", an exact origin, or an origin whose host starts
// with a single "*." label.
func checkOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(strings.Replace(origin, "://*.", "://wildcard.", 1))
	if err != nil {
		return fmt.Errorf("invalid origin %q: %v", origin, err)
	}
	if u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
		return fmt.Errorf("invalid origin %q: want scheme://host[:port]", origin)
	}
	if strings.Count(origin, "*") > 1 {
		return fmt.Errorf("invalid origin %q: only one leading wildcard label is allowed", origin)
	}
	return nil
}

func (v *validator) upstream(cfg *UpstreamConfig) {
	if v.required("upstream.base_url", cfg.BaseURL, "base URL") {
		u, err := url.Parse(cfg.BaseURL)
		switch {
		case err != nil:
			v.fail("upstream.base_url", "invalid URL: %v", err)
		case u.Scheme != "http" && u.Scheme != "https":
			v.fail("upstream.base_url", "URL scheme must be http or https, got %q", u.Scheme)
		case u.Host == "":
			v.fail("upstream.base_url", "URL %q has no host", cfg.BaseURL)
		}
	}

	nonNegative(v, "upstream.timeout", cfg.Timeout, "timeout")
	nonNegative(v, "upstream.max_retries", cfg.MaxRetries, "max retries")
	nonNegative(v, "upstream.stop_timeout", cfg.StopTimeout, "stop timeout")
}

func (v *validator) relay(cfg *RelayConfig) {
	v.required("relay.reset_command", cfg.ResetCommand, "reset command")

	for _, m := range []struct{ field, value string }{
		{"relay.markers.start", cfg.Markers.Start},
		{"relay.markers.end", cfg.Markers.End},
		{"relay.markers.output_start", cfg.Markers.OutputStart},
		{"relay.markers.output_end", cfg.Markers.OutputEnd},
	} {
		if m.value == "" {
			v.fail(m.field, "marker must not be empty")
		}
	}
}

func (v *validator) sessions(cfg *SessionsConfig) {
	v.required("sessions.default_key", cfg.DefaultKey, "default key")
	nonNegative(v, "sessions.idle_ttl", cfg.IdleTTL, "idle TTL")

	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			v.fail("sessions.sweep_schedule", "invalid cron expression %q: %v", cfg.SweepSchedule, err)
		}
	}
}

func (v *validator) telemetry(cfg *TelemetryConfig) {
	if v.required("telemetry.logging.level", cfg.Logging.Level, "logging level") {
		v.oneOf("telemetry.logging.level", cfg.Logging.Level, logLevels)
	}
	if v.required("telemetry.logging.format", cfg.Logging.Format, "logging format") {
		v.oneOf("telemetry.logging.format", cfg.Logging.Format, logFormats)
	}

	if cfg.Metrics.Enabled && v.required("telemetry.metrics.path", cfg.Metrics.Path, "metrics path") {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			v.fail("telemetry.metrics.path", "metrics path must start with '/'")
		}
	}

	if cfg.Tracing.Enabled {
		v.required("telemetry.tracing.endpoint", cfg.Tracing.Endpoint, "tracing endpoint")
	}
	v.oneOf("telemetry.tracing.sampler", cfg.Tracing.Sampler, samplers)
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		v.fail("telemetry.tracing.sample_ratio", "sample ratio must be between 0.0 and 1.0")
	}
}

func (v *validator) security(cfg *SecurityConfig) {
	if cfg.TLS.Enabled {
		v.required("security.tls.cert_file", cfg.TLS.CertFile, "TLS certificate file")
		v.required("security.tls.key_file", cfg.TLS.KeyFile, "TLS key file")
	}
	v.oneOf("security.tls.min_version", cfg.TLS.MinVersion, tlsVersions)
}
