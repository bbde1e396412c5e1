// Package handlers provides the HTTP handlers of the relay.
//
// ChatHandler serves POST /v1/chat/completions. It resolves the caller's
// session, answers the reset command directly, and otherwise forwards the
// last user message through a relay.Pipeline:
//
//   - "stream": true answers with Server-Sent Events, one frame per chunk,
//     terminated by "data: [DONE]".
//   - "stream": false answers with a single chat.completion object, or with
//     {"error": "Request failed: ..."} and status 200 when the upstream fails.
//
// Requests rejected before the upstream is contacted (bad JSON, no user
// message, a session that already has a response in progress) get an
// OpenAI-compatible error envelope:
//
//	{
//	  "error": {
//	    "message": "No user message provided",
//	    "type": "invalid_request_error",
//	    "param": "messages",
//	    "code": "missing_field"
//	  }
//	}
//
// HealthHandler is a liveness probe that always returns 200. ReadyHandler
// returns 503 while the upstream is marked unhealthy.
package handlers
