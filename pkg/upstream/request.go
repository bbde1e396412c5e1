package upstream

import "encoding/json"

// ChatRequest is the body sent to the chat-messages endpoint.
type ChatRequest struct {
	// Query is the latest user message.
	Query string

	// ConversationID continues an existing conversation; empty starts a new one.
	ConversationID string

	// ParentMessageID threads the query after a previous answer; empty for none.
	ParentMessageID string

	// User identifies the end user to the upstream. Omitted when empty.
	User string
}

type chatPayload struct {
	ResponseMode    string         `json:"response_mode"`
	ConversationID  *string        `json:"conversation_id"`
	Files           []any          `json:"files"`
	Query           string         `json:"query"`
	Inputs          map[string]any `json:"inputs"`
	ParentMessageID *string        `json:"parent_message_id"`
	User            string         `json:"user,omitempty"`
}

// MarshalJSON encodes the request in streaming mode, with null identifiers
// when they are unset.
func (r *ChatRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(chatPayload{
		ResponseMode:    "streaming",
		ConversationID:  nullable(r.ConversationID),
		Files:           []any{},
		Query:           r.Query,
		Inputs:          map[string]any{},
		ParentMessageID: nullable(r.ParentMessageID),
		User:            r.User,
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
