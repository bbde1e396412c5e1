// Package types defines the OpenAI-compatible request and response types
// served by the relay.
//
// Request types:
//   - ChatCompletionRequest: body of /v1/chat/completions
//   - Message: one entry of the conversation history
//
// Response types:
//   - ChatCompletionResponse: non-streaming answer
//   - ChatCompletionStreamChunk: one SSE frame of a streaming answer
//   - RelayError: non-streaming body when the upstream request failed
//
// Error types:
//   - ErrorResponse: OpenAI-compatible error envelope
//   - ErrorDetail: error type, message, param and code
//
// Clients built on the OpenAI SDKs can point their base URL at the relay:
//
//	from openai import OpenAI
//	client = OpenAI(base_url="http://localhost:8080/v1", api_key="unused")
//	for chunk in client.chat.completions.create(
//	    model="o3-mini",
//	    messages=[{"role": "user", "content": "Hello!"}],
//	    stream=True,
//	):
//	    print(chunk.choices[0].delta.content, end="")
package types
