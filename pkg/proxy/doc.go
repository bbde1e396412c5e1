// Package proxy holds the HTTP wire helpers of the relay: request parsing,
// session key resolution, error mapping and Server-Sent Events framing.
//
// # Architecture
//
//   - handlers: the chat completions, health and readiness endpoints
//   - middleware: recovery, logging, request ID and CORS
//   - types: OpenAI-compatible request, response and error structures
//
// The listener itself lives in pkg/server.
//
// # Request Flow
//
//  1. Client sends an OpenAI-compatible request to /v1/chat/completions
//  2. Middleware chain processes the request (recovery → logging → request ID → CORS)
//  3. Handler parses the body and resolves the session key
//  4. A reset command resets the session and is acknowledged immediately
//  5. Otherwise the last user message is relayed through pkg/relay
//  6. Chunks are written as SSE frames, or a single JSON object is returned
//
// # Streaming
//
// Frames use the "data: <json>\n\n" format and end with "data: [DONE]\n\n":
//
//	data: {"id":"chatcmpl-…","object":"chat.completion.chunk","created":1700000000,"model":"o3-mini","choices":[{"index":0,"delta":{"content":"<think>"},"finish_reason":null}]}
//
//	data: [DONE]
//
// SSEWriter implements relay.ChunkWriter and flushes after every frame.
//
// # Errors
//
// Errors raised before relaying starts use the OpenAI error envelope:
//
//	{"error":{"message":"No user message provided","type":"invalid_request_error","param":"messages","code":"missing_field"}}
//
// Upstream failures are never reported as HTTP errors. Streaming requests
// receive an error chunk; non-streaming requests receive {"error": "..."}
// with status 200.
package proxy
