package types

// Object names used in responses.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
)

// Finish reasons used by the relay.
const (
	FinishReasonStop  = "stop"
	FinishReasonError = "error"
)

// ChatCompletionResponse is the body of a non-streaming completion. It always
// holds exactly one choice.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is the relayed answer of a ChatCompletionResponse. FinishReason is
// always "stop".
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatCompletionStreamChunk is one "data:" frame of a streamed completion.
// ID is "chatcmpl-" plus a random UUID and is fresh for every chunk rather
// than stable across a stream.
type ChatCompletionStreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice carries one delta. FinishReason serializes as null on
// content chunks and is "error" on the chunk that reports an upstream
// failure.
type StreamChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the text added by a chunk. Content is emitted even when empty.
type Delta struct {
	Content string `json:"content"`
}

// RelayError is the 200 response body of a non-streaming request whose
// upstream failed.
type RelayError struct {
	Error string `json:"error"`
}
