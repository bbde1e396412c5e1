package logging

import (
	"context"
	"log/slog"
)

type fieldsKey struct{}

// Fields are the request-scoped values attached to every log record of a
// relay cycle.
type Fields struct {
	RequestID string
	Session   string
	Model     string
}

// attrs returns the non-empty fields as slog key/value pairs.
func (f Fields) attrs() []any {
	var out []any
	if f.RequestID != "" {
		out = append(out, "request_id", f.RequestID)
	}
	if f.Session != "" {
		out = append(out, "session", f.Session)
	}
	if f.Model != "" {
		out = append(out, "model", f.Model)
	}
	return out
}

// FieldsFrom returns the fields stored in ctx.
func FieldsFrom(ctx context.Context) Fields {
	if f, ok := ctx.Value(fieldsKey{}).(Fields); ok {
		return f
	}
	return Fields{}
}

func withFields(ctx context.Context, update func(*Fields)) context.Context {
	f := FieldsFrom(ctx)
	update(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithRequestID returns a copy of ctx carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withFields(ctx, func(f *Fields) { f.RequestID = requestID })
}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	return FieldsFrom(ctx).RequestID
}

// WithSession returns a copy of ctx carrying the session key.
func WithSession(ctx context.Context, session string) context.Context {
	return withFields(ctx, func(f *Fields) { f.Session = session })
}

// GetSession returns the session key stored in ctx, or "".
func GetSession(ctx context.Context) string {
	return FieldsFrom(ctx).Session
}

// WithModel returns a copy of ctx carrying the model name.
func WithModel(ctx context.Context, model string) context.Context {
	return withFields(ctx, func(f *Fields) { f.Model = model })
}

// GetModel returns the model name stored in ctx, or "".
func GetModel(ctx context.Context) string {
	return FieldsFrom(ctx).Model
}

// FromContext returns the default logger with the fields of ctx bound to it.
// Use it when the logger outlives ctx or is used without a context. Records
// it writes should not also be logged with ctx, or the fields appear twice.
func FromContext(ctx context.Context) *slog.Logger {
	attrs := FieldsFrom(ctx).attrs()
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}
