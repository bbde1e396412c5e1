package types

// ChatCompletionRequest is the subset of an OpenAI chat completion request
// the relay acts on. Sampling parameters, tools and the like are accepted
// and ignored; the upstream chat API has no equivalent for them.
type ChatCompletionRequest struct {
	// Model is echoed back in every chunk. Defaults to the configured relay
	// model.
	Model string `json:"model"`

	// Messages is the client's view of the conversation. The upstream keeps
	// its own history, so only the last message and the last user message
	// are read.
	Messages []Message `json:"messages"`

	// Stream selects an SSE response.
	Stream bool `json:"stream,omitempty"`

	// User selects the relay session when no session header is present.
	User string `json:"user,omitempty"`
}

// Message is one message of the conversation.
type Message struct {
	Role string `json:"role"`

	// Content is usually a string or an array of content parts.
	Content any `json:"content"`

	Name string `json:"name,omitempty"`
}

// Validate checks the fields the relay depends on. Roles and content shapes
// are not checked; the relay reads only the messages it needs.
func (r *ChatCompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{
			Field:   "messages",
			Code:    CodeMissingField,
			Message: "messages must contain at least one message",
		}
	}

	return nil
}

// ValidationError reports the request field that failed validation.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
