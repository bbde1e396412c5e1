package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/difyrelay/pkg/proxy/types"
)

var doneFrame = []byte("data: [DONE]\n\n")

// WriteJSONResponse writes data as a JSON body with statusCode.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes an OpenAI error envelope with the status of its
// error type.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// WriteRelayError writes the {"error": "..."} body of a non-streaming
// request that failed upstream. The status is 200.
func WriteRelayError(w http.ResponseWriter, message string) error {
	return WriteJSONResponse(w, http.StatusOK, types.RelayError{Error: message})
}

// SetSSEHeaders sets the headers of a Server-Sent Events response.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx
}

// WriteSSEChunk writes chunk as one "data: <json>" frame and flushes it.
func WriteSSEChunk(w http.ResponseWriter, chunk *types.ChatCompletionStreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE chunk: %w", err)
	}

	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return writeFrame(w, frame)
}

// WriteSSEDone writes the terminal "data: [DONE]" frame and flushes it.
func WriteSSEDone(w http.ResponseWriter) error {
	return writeFrame(w, doneFrame)
}

func writeFrame(w http.ResponseWriter, frame []byte) error {
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write SSE frame: %w", err)
	}
	// Writers that cannot flush still deliver the frame when the
	// response ends.
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("failed to flush SSE frame: %w", err)
	}
	return nil
}

// SSEWriter streams frames to an HTTP response. The 200 status and SSE
// headers go out with the first frame, so a handler can still send an
// ordinary error response until then.
type SSEWriter struct {
	w       http.ResponseWriter
	started bool
}

// NewSSEWriter wraps w.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	return &SSEWriter{w: w}
}

func (s *SSEWriter) start() {
	if s.started {
		return
	}
	s.started = true
	SetSSEHeaders(s.w)
	s.w.WriteHeader(http.StatusOK)
}

// WriteChunk writes one chunk frame.
func (s *SSEWriter) WriteChunk(chunk *types.ChatCompletionStreamChunk) error {
	s.start()
	return WriteSSEChunk(s.w, chunk)
}

// WriteDone writes the terminal frame.
func (s *SSEWriter) WriteDone() error {
	s.start()
	return WriteSSEDone(s.w)
}

// Started reports whether any frame was written.
func (s *SSEWriter) Started() bool {
	return s.started
}
