package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "DIFYRELAY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention DIFYRELAY_SECTION_FIELD (e.g., DIFYRELAY_UPSTREAM_API_KEY).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file, so a deployment can be configured from the
// environment alone.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	cfg := newConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric, boolean, and duration values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	envString("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envDuration("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	envDuration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	envDuration("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	envDuration("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	envInt("PROXY_MAX_HEADER_BYTES", &cfg.Proxy.MaxHeaderBytes)
	envInt64("PROXY_MAX_REQUEST_BYTES", &cfg.Proxy.MaxRequestBytes)

	// Upstream overrides
	envString("UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	envString("UPSTREAM_API_KEY", &cfg.Upstream.APIKey)
	envString("UPSTREAM_USER", &cfg.Upstream.User)
	envDuration("UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	envInt("UPSTREAM_MAX_RETRIES", &cfg.Upstream.MaxRetries)
	envDuration("UPSTREAM_STOP_TIMEOUT", &cfg.Upstream.StopTimeout)
	envBool("UPSTREAM_INSECURE_SKIP_VERIFY", &cfg.Upstream.InsecureSkipVerify)

	// Relay overrides
	envString("RELAY_DEFAULT_MODEL", &cfg.Relay.DefaultModel)
	envString("RELAY_RESET_COMMAND", &cfg.Relay.ResetCommand)
	envString("RELAY_RESET_MESSAGE", &cfg.Relay.ResetMessage)

	// Session overrides
	envString("SESSIONS_HEADER", &cfg.Sessions.Header)
	envString("SESSIONS_DEFAULT_KEY", &cfg.Sessions.DefaultKey)
	envDuration("SESSIONS_IDLE_TTL", &cfg.Sessions.IdleTTL)
	envString("SESSIONS_SWEEP_SCHEDULE", &cfg.Sessions.SweepSchedule)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)

	// Security overrides
	envBool("SECURITY_TLS_ENABLED", &cfg.Security.TLS.Enabled)
	envString("SECURITY_TLS_CERT_FILE", &cfg.Security.TLS.CertFile)
	envString("SECURITY_TLS_KEY_FILE", &cfg.Security.TLS.KeyFile)

	envBool("WATCH", &cfg.Watch)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envInt64(name string, dst *int64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
