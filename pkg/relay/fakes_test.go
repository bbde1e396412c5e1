package relay

import (
	"context"
	"errors"
	"io"
	"sync"

	"mercator-hq/difyrelay/pkg/proxy/types"
	"mercator-hq/difyrelay/pkg/upstream"
)

var errClientGone = errors.New("write: broken pipe")

// fakeUpstream serves one scripted event stream per OpenStream call.
type fakeUpstream struct {
	events  []*upstream.Event
	openErr error
	readErr error // returned after the scripted events instead of io.EOF

	mu       sync.Mutex
	requests []*upstream.ChatRequest
	ctxErrs  []error
	streams  []*fakeStream
}

func (f *fakeUpstream) OpenStream(ctx context.Context, req *upstream.ChatRequest) (upstream.EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *req
	f.requests = append(f.requests, &copied)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())

	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeStream{events: f.events, err: f.readErr}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeUpstream) lastRequest() *upstream.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeUpstream) lastStream() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

type fakeStream struct {
	events []*upstream.Event
	err    error
	pos    int
	reads  int
	closed int
}

func (s *fakeStream) Next() (*upstream.Event, error) {
	s.reads++
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

// recordingWriter collects frames. onChunk runs before each chunk is stored
// and may fail the write.
type recordingWriter struct {
	chunks  []*types.ChatCompletionStreamChunk
	done    int
	onChunk func(n int) error
}

func (w *recordingWriter) WriteChunk(chunk *types.ChatCompletionStreamChunk) error {
	if w.onChunk != nil {
		if err := w.onChunk(len(w.chunks)); err != nil {
			return err
		}
	}
	w.chunks = append(w.chunks, chunk)
	return nil
}

func (w *recordingWriter) WriteDone() error {
	w.done++
	return nil
}

func (w *recordingWriter) text() string {
	var out string
	for _, c := range w.chunks {
		out += c.Choices[0].Delta.Content
	}
	return out
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) NotifyStop(messageID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, messageID)
}

func (n *recordingNotifier) stopped() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ids...)
}

func workflowStarted(conversationID string) *upstream.Event {
	return &upstream.Event{Kind: upstream.KindWorkflowStarted, Name: upstream.EventWorkflowStarted, ConversationID: conversationID}
}

func message(conversationID, messageID, answer string) *upstream.Event {
	return &upstream.Event{
		Kind:           upstream.KindMessage,
		Name:           upstream.EventMessage,
		Answer:         answer,
		ConversationID: conversationID,
		MessageID:      messageID,
	}
}

func messageEnd(messageID string) *upstream.Event {
	return &upstream.Event{Kind: upstream.KindMessageEnd, Name: upstream.EventMessageEnd, MessageID: messageID}
}

func malformed(raw string) *upstream.Event {
	return &upstream.Event{Kind: upstream.KindMalformed, Raw: raw}
}

func unknown(name string) *upstream.Event {
	return &upstream.Event{Kind: upstream.KindUnknown, Name: name}
}
