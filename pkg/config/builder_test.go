package config

import "time"

// ConfigBuilder builds valid test configurations with selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig starts from the defaults plus a local upstream.
func NewTestConfig() *ConfigBuilder {
	cfg := newConfig()
	cfg.Upstream.BaseURL = "http://127.0.0.1:5001/v1"
	cfg.Upstream.APIKey = "app-test"
	ApplyDefaults(cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithListenAddress sets the proxy listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Proxy.ListenAddress = addr
	return b
}

// WithBaseURL sets the upstream base URL.
func (b *ConfigBuilder) WithBaseURL(url string) *ConfigBuilder {
	b.cfg.Upstream.BaseURL = url
	return b
}

// WithIdleTTL sets the session idle TTL.
func (b *ConfigBuilder) WithIdleTTL(d time.Duration) *ConfigBuilder {
	b.cfg.Sessions.IdleTTL = d
	return b
}

// WithTLS enables listener TLS with the given files.
func (b *ConfigBuilder) WithTLS(certFile, keyFile string) *ConfigBuilder {
	b.cfg.Security.TLS.Enabled = true
	b.cfg.Security.TLS.CertFile = certFile
	b.cfg.Security.TLS.KeyFile = keyFile
	return b
}

// WithCORS enables CORS for origins.
func (b *ConfigBuilder) WithCORS(origins ...string) *ConfigBuilder {
	b.cfg.Proxy.CORS.Enabled = true
	b.cfg.Proxy.CORS.AllowedOrigins = origins
	return b
}

// WithMarkers replaces the reasoning markers.
func (b *ConfigBuilder) WithMarkers(start, end string) *ConfigBuilder {
	b.cfg.Relay.Markers.Start = start
	b.cfg.Relay.Markers.End = end
	return b
}
