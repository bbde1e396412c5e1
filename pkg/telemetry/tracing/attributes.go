package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys use the "difyrelay.*" namespace.
const (
	AttrRequestID      = "difyrelay.request_id"
	AttrSession        = "difyrelay.session"
	AttrModel          = "difyrelay.model"
	AttrStream         = "difyrelay.stream"
	AttrConversationID = "difyrelay.conversation_id"
	AttrMessageID      = "difyrelay.message_id"
	AttrChunks         = "difyrelay.chunks"
	AttrEvents         = "difyrelay.events"
	AttrMalformed      = "difyrelay.events.malformed"
	AttrOutcome        = "difyrelay.outcome"
	AttrQueryLength    = "difyrelay.query.length"
	AttrCancelled      = "difyrelay.cancelled"
)

// SetRequestAttributes records which request and session a span serves.
func SetRequestAttributes(span trace.Span, requestID, session, model string, stream bool) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrSession, session),
		attribute.String(AttrModel, model),
		attribute.Bool(AttrStream, stream),
	}
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	span.SetAttributes(attrs...)
}

// SetConversationAttributes records the upstream identifiers seen so far.
// Empty values are skipped.
func SetConversationAttributes(span trace.Span, conversationID, messageID string) {
	var attrs []attribute.KeyValue
	if conversationID != "" {
		attrs = append(attrs, attribute.String(AttrConversationID, conversationID))
	}
	if messageID != "" {
		attrs = append(attrs, attribute.String(AttrMessageID, messageID))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// SetRelayResultAttributes records the counters of a finished relay cycle.
func SetRelayResultAttributes(span trace.Span, outcome string, events, malformed, chunks int) {
	span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int(AttrEvents, events),
		attribute.Int(AttrMalformed, malformed),
		attribute.Int(AttrChunks, chunks),
	)
}

// AddEvent adds an event to the span with optional attributes.
//
// Example:
//
//	tracing.AddEvent(span, "reset", attribute.String("session", key))
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
