package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log output.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

var defaultPatterns = []*redactPattern{
	{
		name:        PatternBearerToken,
		regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
		replacement: "Bearer ***",
	},
	{
		// Dify application keys and OpenAI-style secret keys.
		name:        PatternAPIKey,
		regex:       regexp.MustCompile(`\b(app|sk)-[A-Za-z0-9]{8,}`),
		replacement: "$1-***",
	},
	{
		name:        PatternPassword,
		regex:       regexp.MustCompile(`(password|passwd|pwd)[:=]\s*[^\s]+`),
		replacement: "$1: ***",
	},
}

var sensitiveKeys = []string{
	"password", "passwd", "secret", "token",
	"api_key", "apikey", "authorization",
	"private_key", "privatekey",
}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// RedactString masks credentials embedded in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr masks the value of a sensitive key entirely and scrubs
// credentials from string values. Groups are handled recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, redacted...)
	}

	if isSensitiveKey(a.Key) {
		if s, ok := a.Value.Any().(string); ok {
			return slog.String(a.Key, RedactAPIKey(s))
		}
		return slog.String(a.Key, "***")
	}

	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 4 {
		return "***"
	}
	return apiKey[:4] + "***"
}
