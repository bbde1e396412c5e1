package upstream

import (
	"github.com/tidwall/gjson"
)

// Kind classifies an upstream event record.
type Kind int

const (
	// KindUnknown is a well-formed record with an unrecognised event name.
	KindUnknown Kind = iota

	// KindMalformed is a data line that is not a JSON object with a string
	// "event" field.
	KindMalformed

	// KindWorkflowStarted announces the conversation a workflow belongs to.
	KindWorkflowStarted

	// KindMessage carries an answer fragment.
	KindMessage

	// KindMessageEnd closes the message.
	KindMessageEnd
)

// Event names used by the upstream chat-messages API.
const (
	EventWorkflowStarted = "workflow_started"
	EventMessage         = "message"
	EventMessageEnd      = "message_end"
)

// String returns the label used for logging and metrics.
func (k Kind) String() string {
	switch k {
	case KindWorkflowStarted:
		return EventWorkflowStarted
	case KindMessage:
		return EventMessage
	case KindMessageEnd:
		return EventMessageEnd
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event is one decoded record of the upstream event stream.
type Event struct {
	Kind Kind

	// Name is the raw "event" discriminator, empty for malformed records.
	Name string

	// Answer is the text delta of a message event.
	Answer string

	ConversationID string
	MessageID      string
	TaskID         string

	// Raw is the JSON payload after the "data:" prefix.
	Raw string
}

// DecodeEvent parses the payload of one "data:" line. It never fails; records
// that cannot be used are returned with KindMalformed.
func DecodeEvent(payload string) *Event {
	if !gjson.Valid(payload) {
		return &Event{Kind: KindMalformed, Raw: payload}
	}

	record := gjson.Parse(payload)
	if !record.IsObject() {
		return &Event{Kind: KindMalformed, Raw: payload}
	}

	name := record.Get("event")
	if name.Type != gjson.String {
		return &Event{Kind: KindMalformed, Raw: payload}
	}

	fields := gjson.GetMany(payload, "answer", "conversation_id", "message_id", "task_id")
	return &Event{
		Kind:           kindOf(name.Str),
		Name:           name.Str,
		Answer:         fields[0].String(),
		ConversationID: fields[1].String(),
		MessageID:      fields[2].String(),
		TaskID:         fields[3].String(),
		Raw:            payload,
	}
}

func kindOf(name string) Kind {
	switch name {
	case EventWorkflowStarted:
		return KindWorkflowStarted
	case EventMessage:
		return KindMessage
	case EventMessageEnd:
		return KindMessageEnd
	default:
		return KindUnknown
	}
}
