package proxy

import (
	"log/slog"
	"net/http"

	"mercator-hq/difyrelay/pkg/proxy/types"
)

// RequestMetadata summarizes a chat completion request for logs and spans.
// It never holds message content.
type RequestMetadata struct {
	RequestID    string
	Session      string
	Model        string
	Stream       bool
	MessageCount int

	Method     string
	Path       string
	UserAgent  string
	RemoteAddr string
}

// ExtractRequestMetadata collects the metadata of r and its parsed body.
// requestID and session are resolved by the caller.
func ExtractRequestMetadata(r *http.Request, req *types.ChatCompletionRequest, requestID, session string) RequestMetadata {
	return RequestMetadata{
		RequestID:    requestID,
		Session:      session,
		Model:        req.Model,
		Stream:       req.Stream,
		MessageCount: len(req.Messages),
		Method:       r.Method,
		Path:         r.URL.Path,
		UserAgent:    r.UserAgent(),
		RemoteAddr:   r.RemoteAddr,
	}
}

// LogValue renders the metadata as a group. Request ID, session and model
// are left out; loggers from logging.FromContext already carry them.
func (m RequestMetadata) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("stream", m.Stream),
		slog.Int("messages", m.MessageCount),
		slog.String("method", m.Method),
		slog.String("path", m.Path),
		slog.String("remote_addr", m.RemoteAddr),
		slog.String("user_agent", m.UserAgent),
	)
}
