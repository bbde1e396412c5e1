package handlers

import (
	"mercator-hq/difyrelay/pkg/config"
	"mercator-hq/difyrelay/pkg/session"
	"mercator-hq/difyrelay/pkg/upstream"
)

// SessionStore resolves a session key to its session, creating it on first
// use.
type SessionStore interface {
	Get(key string) *session.Session
	Len() int
}

// UpstreamHealth reports the observed health of the upstream backend.
type UpstreamHealth interface {
	Health() upstream.Health
}

// ConfigSource returns the configuration in effect for a request.
type ConfigSource func() *config.Config
