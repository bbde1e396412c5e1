package relay

import (
	"time"

	"mercator-hq/difyrelay/pkg/proxy/types"
	"mercator-hq/difyrelay/pkg/telemetry/logging"

	"github.com/google/uuid"
)

const chunkIDPrefix = "chatcmpl-"

var redactor = logging.NewRedactor()

// newID returns a fresh completion id. Every chunk gets its own id.
func newID() string {
	return chunkIDPrefix + uuid.NewString()
}

// NewChunk builds a single-choice stream chunk. A nil finishReason encodes as
// null.
func NewChunk(model, content string, finishReason *string) *types.ChatCompletionStreamChunk {
	return &types.ChatCompletionStreamChunk{
		ID:      newID(),
		Object:  types.ObjectChatCompletionChunk,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []types.StreamChoice{
			{
				Index:        0,
				Delta:        types.Delta{Content: content},
				FinishReason: finishReason,
			},
		},
	}
}

// NewErrorChunk builds the chunk that reports an upstream failure in place of
// further content.
func NewErrorChunk(model string, err error) *types.ChatCompletionStreamChunk {
	reason := types.FinishReasonError
	return NewChunk(model, "\n"+FailureMessage(err), &reason)
}

// NewCompletion builds a finished non-streaming response.
func NewCompletion(model, content string) *types.ChatCompletionResponse {
	return &types.ChatCompletionResponse{
		ID:      newID(),
		Object:  types.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []types.Choice{
			{
				Index: 0,
				Message: types.Message{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: types.FinishReasonStop,
			},
		},
	}
}

// FailureMessage is the caller-facing text for an upstream failure.
// Credentials echoed back by the upstream are masked.
func FailureMessage(err error) string {
	return "Request failed: " + redactor.RedactString(err.Error())
}
