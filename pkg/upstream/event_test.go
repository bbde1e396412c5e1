package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name:    "workflow started",
			payload: `{"event":"workflow_started","conversation_id":"c1","task_id":"t1"}`,
			want:    Event{Kind: KindWorkflowStarted, Name: "workflow_started", ConversationID: "c1", TaskID: "t1"},
		},
		{
			name:    "message",
			payload: `{"event":"message","answer":"Hel","conversation_id":"c1","message_id":"m1"}`,
			want:    Event{Kind: KindMessage, Name: "message", Answer: "Hel", ConversationID: "c1", MessageID: "m1"},
		},
		{
			name:    "message with empty answer",
			payload: `{"event":"message","answer":"","message_id":"m1"}`,
			want:    Event{Kind: KindMessage, Name: "message", MessageID: "m1"},
		},
		{
			name:    "message end",
			payload: `{"event":"message_end","message_id":"m1","metadata":{"usage":{"total_tokens":12}}}`,
			want:    Event{Kind: KindMessageEnd, Name: "message_end", MessageID: "m1"},
		},
		{
			name:    "unknown event",
			payload: `{"event":"node_finished","message_id":"m1"}`,
			want:    Event{Kind: KindUnknown, Name: "node_finished", MessageID: "m1"},
		},
		{
			name:    "invalid json",
			payload: `{"event":"message",`,
			want:    Event{Kind: KindMalformed},
		},
		{
			name:    "not an object",
			payload: `["message"]`,
			want:    Event{Kind: KindMalformed},
		},
		{
			name:    "missing event",
			payload: `{"answer":"hi"}`,
			want:    Event{Kind: KindMalformed},
		},
		{
			name:    "non-string event",
			payload: `{"event":3}`,
			want:    Event{Kind: KindMalformed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeEvent(tt.payload)

			tt.want.Raw = tt.payload
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "workflow_started", KindWorkflowStarted.String())
	assert.Equal(t, "message", KindMessage.String())
	assert.Equal(t, "message_end", KindMessageEnd.String())
	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
