package relay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mercator-hq/difyrelay/pkg/config"
	"mercator-hq/difyrelay/pkg/proxy/types"
	"mercator-hq/difyrelay/pkg/session"
	"mercator-hq/difyrelay/pkg/telemetry/metrics"
	"mercator-hq/difyrelay/pkg/transducer"
	"mercator-hq/difyrelay/pkg/upstream"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	start = transducer.DefaultStartMarker
	end   = transducer.DefaultEndMarker
)

func newRequest(query string) *Request {
	return &Request{
		Model:   "o3-mini",
		Query:   query,
		Markers: transducer.DefaultMarkers(),
	}
}

func beginRun(t *testing.T, sess *session.Session) *session.Run {
	t.Helper()
	run, err := sess.Begin()
	require.NoError(t, err)
	return run
}

func thinkingTranscript() []*upstream.Event {
	return []*upstream.Event{
		workflowStarted("c1"),
		message("c1", "m1", start+"think"),
		message("c1", "m1", "ing"+end[:3]),
		message("c1", "m1", end[3:]+"answer"),
		messageEnd("m1"),
	}
}

func TestStream_RewritesMarkupAndRefreshesSession(t *testing.T) {
	up := &fakeUpstream{events: thinkingTranscript()}
	sess := session.New("default", nil)
	w := &recordingWriter{}

	err := NewPipeline(up, Options{}).Stream(context.Background(), beginRun(t, sess), newRequest("hi"), w)
	require.NoError(t, err)

	assert.Equal(t, "<think>thinking</think>answer", w.text())
	// One chunk per message event, plus the text after the block that is
	// held until the flush.
	require.Len(t, w.chunks, 4)
	assert.Equal(t, "answer", w.chunks[3].Choices[0].Delta.Content)
	assert.Equal(t, 1, w.done)

	ids := map[string]bool{}
	for _, c := range w.chunks {
		assert.True(t, strings.HasPrefix(c.ID, "chatcmpl-"))
		assert.Equal(t, types.ObjectChatCompletionChunk, c.Object)
		assert.Equal(t, "o3-mini", c.Model)
		assert.Nil(t, c.Choices[0].FinishReason)
		ids[c.ID] = true
	}
	assert.Len(t, ids, 4, "chunk ids are fresh per chunk")

	req := up.lastRequest()
	assert.Equal(t, "hi", req.Query)
	assert.Empty(t, req.ConversationID)
	assert.Empty(t, req.ParentMessageID)

	state := sess.State()
	assert.Equal(t, "c1", state.ConversationID)
	assert.Equal(t, "m1", state.ParentMessageID)
	assert.Equal(t, "m1", state.CurrentMessageID)
	assert.False(t, state.Running)
	assert.GreaterOrEqual(t, up.lastStream().closed, 1)
}

func TestStream_ContinuesConversation(t *testing.T) {
	up := &fakeUpstream{events: []*upstream.Event{message("c1", "m2", "again"), messageEnd("m2")}}
	sess := session.New("default", nil)

	first := beginRun(t, sess)
	first.ObserveMessage("c1", "m1")
	first.Finish()

	err := NewPipeline(up, Options{}).Stream(context.Background(), beginRun(t, sess), newRequest("next"), &recordingWriter{})
	require.NoError(t, err)

	req := up.lastRequest()
	assert.Equal(t, "c1", req.ConversationID)
	assert.Equal(t, "m1", req.ParentMessageID)
	assert.Equal(t, "m2", sess.State().ParentMessageID)
}

func TestStream_EmitsEmptyChunksAndFlushedRemainder(t *testing.T) {
	up := &fakeUpstream{events: []*upstream.Event{
		message("c1", "m1", ""),
		message("c1", "m1", start+"partial</det"),
	}}
	w := &recordingWriter{}

	err := NewPipeline(up, Options{}).Stream(context.Background(), beginRun(t, session.New("k", nil)), newRequest("hi"), w)
	require.NoError(t, err)

	require.Len(t, w.chunks, 3)
	assert.Equal(t, "", w.chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "<think>partial", w.chunks[1].Choices[0].Delta.Content)
	assert.Equal(t, "</det", w.chunks[2].Choices[0].Delta.Content, "flush never closes the block")
	assert.Equal(t, 1, w.done)
}

func TestStream_SkipsMalformedAndUnknownEvents(t *testing.T) {
	up := &fakeUpstream{events: []*upstream.Event{
		malformed("{not json"),
		workflowStarted("c1"),
		unknown("node_started"),
		message("c1", "m1", "hello"),
		malformed(`{"answer":"lost"}`),
		messageEnd("m1"),
	}}
	w := &recordingWriter{}
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, nil)

	err := NewPipeline(up, Options{Metrics: collector}).Stream(context.Background(), beginRun(t, session.New("k", nil)), newRequest("hi"), w)
	require.NoError(t, err)

	assert.Equal(t, "hello", w.text())
	assert.Len(t, w.chunks, 1)
	assert.Equal(t, 1, w.done)

	expected := `
# HELP test_chunks_emitted_total Total number of chunks written to clients
# TYPE test_chunks_emitted_total counter
test_chunks_emitted_total 1
# HELP test_malformed_events_total Total number of upstream data lines that could not be decoded
# TYPE test_malformed_events_total counter
test_malformed_events_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"test_chunks_emitted_total", "test_malformed_events_total"))
}

func TestStream_OpenFailureBecomesErrorChunk(t *testing.T) {
	cause := &upstream.TransportError{URL: "http://backend/v1/chat-messages", Cause: errors.New("connection refused")}
	up := &fakeUpstream{openErr: cause}
	notifier := &recordingNotifier{}
	sess := session.New("k", notifier)
	w := &recordingWriter{}

	err := NewPipeline(up, Options{}).Stream(context.Background(), beginRun(t, sess), newRequest("hi"), w)
	require.NoError(t, err, "upstream failures are reported in-band")

	require.Len(t, w.chunks, 1)
	choice := w.chunks[0].Choices[0]
	assert.Equal(t, "\nRequest failed: "+cause.Error(), choice.Delta.Content)
	require.NotNil(t, choice.FinishReason)
	assert.Equal(t, types.FinishReasonError, *choice.FinishReason)
	assert.Equal(t, 1, w.done)

	assert.False(t, sess.Running())
	assert.Empty(t, notifier.stopped())
}

func TestStream_MidStreamFailureBecomesErrorChunk(t *testing.T) {
	up := &fakeUpstream{
		events:  []*upstream.Event{message("c1", "m1", "partial answer")},
		readErr: &upstream.StreamError{Message: "failed to read stream", Cause: errors.New("unexpected EOF")},
	}
	sess := session.New("k", &recordingNotifier{})
	w := &recordingWriter{}

	err := NewPipeline(up, Options{}).Stream(context.Background(), beginRun(t, sess), newRequest("hi"), w)
	require.NoError(t, err)

	require.Len(t, w.chunks, 2)
	assert.Equal(t, "partial answer", w.chunks[0].Choices[0].Delta.Content)
	assert.Contains(t, w.chunks[1].Choices[0].Delta.Content, "Request failed: upstream stream error")
	assert.Equal(t, types.FinishReasonError, *w.chunks[1].Choices[0].FinishReason)
	assert.Equal(t, 1, w.done)
	assert.False(t, sess.Running())
}

func TestStream_WriteFailureCancelsRun(t *testing.T) {
	up := &fakeUpstream{events: []*upstream.Event{
		workflowStarted("c1"),
		message("c1", "m1", "a"),
		message("c1", "m2", "b"),
		message("c1", "m3", "c"),
		messageEnd("m3"),
	}}
	notifier := &recordingNotifier{}
	sess := session.New("k", notifier)
	w := &recordingWriter{onChunk: func(n int) error {
		if n == 1 {
			return errClientGone
		}
		return nil
	}}

	err := NewPipeline(up, Options{}).Stream(context.Background(), beginRun(t, sess), newRequest("hi"), w)
	require.NoError(t, err, "a departed caller is not an error")

	assert.Len(t, w.chunks, 1)
	assert.Zero(t, w.done, "no terminal frame after the caller left")
	assert.Equal(t, []string{"m2"}, notifier.stopped(), "exactly one stop for the latest message")

	stream := up.lastStream()
	assert.GreaterOrEqual(t, stream.closed, 1)
	assert.Equal(t, 3, stream.reads, "no reads after the caller left")

	state := sess.State()
	assert.False(t, state.Running)
	assert.Equal(t, "c1", state.ConversationID)
	assert.Equal(t, "m2", state.ParentMessageID)
}

func TestStream_ContextCancelledBetweenReads(t *testing.T) {
	up := &fakeUpstream{events: []*upstream.Event{
		message("c1", "m1", "a"),
		message("c1", "m1", "b"),
	}}
	notifier := &recordingNotifier{}
	sess := session.New("k", notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &recordingWriter{onChunk: func(n int) error {
		cancel()
		return nil
	}}

	err := NewPipeline(up, Options{}).Stream(ctx, beginRun(t, sess), newRequest("hi"), w)
	require.NoError(t, err)

	assert.Len(t, w.chunks, 1)
	assert.Zero(t, w.done)
	assert.Equal(t, []string{"m1"}, notifier.stopped())
	assert.False(t, sess.Running())
	assert.Equal(t, 1, up.lastStream().reads)
}

func TestStream_ContextCancelledBeforeOpen(t *testing.T) {
	up := &fakeUpstream{openErr: context.Canceled}
	sess := session.New("k", &recordingNotifier{})
	w := &recordingWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPipeline(up, Options{}).Stream(ctx, beginRun(t, sess), newRequest("hi"), w)
	require.NoError(t, err)

	assert.Empty(t, w.chunks, "nobody is listening for an error chunk")
	assert.Zero(t, w.done)
	assert.False(t, sess.Running())
}

func TestStream_InterruptedByReset(t *testing.T) {
	up := &fakeUpstream{events: []*upstream.Event{
		workflowStarted("c1"),
		message("c1", "m1", "a"),
		message("c1", "m2", "b"),
		messageEnd("m2"),
	}}
	notifier := &recordingNotifier{}
	sess := session.New("k", notifier)
	w := &recordingWriter{onChunk: func(n int) error {
		if n == 0 {
			sess.Reset()
		}
		return nil
	}}

	err := NewPipeline(up, Options{}).Stream(context.Background(), beginRun(t, sess), newRequest("hi"), w)
	require.NoError(t, err)

	assert.Len(t, w.chunks, 1)
	assert.Equal(t, 1, w.done)
	assert.Equal(t, []string{"m1"}, notifier.stopped(), "the reset sends the only stop")

	state := sess.State()
	assert.Equal(t, session.State{}, state, "no updates land after the reset")
}

func TestStream_RequiresQuery(t *testing.T) {
	sess := session.New("k", nil)

	err := NewPipeline(&fakeUpstream{}, Options{}).Stream(context.Background(), beginRun(t, sess), newRequest(""), &recordingWriter{})

	assert.ErrorIs(t, err, ErrNoUserMessage)
	assert.False(t, sess.Running())
}

func TestComplete(t *testing.T) {
	up := &fakeUpstream{events: thinkingTranscript()}
	sess := session.New("k", nil)

	resp, err := NewPipeline(up, Options{}).Complete(context.Background(), beginRun(t, sess), newRequest("hi"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Equal(t, types.ObjectChatCompletion, resp.Object)
	assert.Equal(t, "o3-mini", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "<think>thinking</think>answer", resp.Choices[0].Message.Content)
	assert.Equal(t, types.FinishReasonStop, resp.Choices[0].FinishReason)

	state := sess.State()
	assert.Equal(t, "c1", state.ConversationID)
	assert.Equal(t, "m1", state.ParentMessageID)
	assert.False(t, state.Running)
}

func TestComplete_IgnoresCallerCancellation(t *testing.T) {
	up := &fakeUpstream{events: []*upstream.Event{message("c1", "m1", "done anyway")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := NewPipeline(up, Options{}).Complete(ctx, beginRun(t, session.New("k", nil)), newRequest("hi"))
	require.NoError(t, err)

	assert.Equal(t, "done anyway", resp.Choices[0].Message.Content)
	assert.NoError(t, up.ctxErrs[0], "upstream context is detached from the caller")
}

func TestComplete_UpstreamFailure(t *testing.T) {
	cause := &upstream.StatusError{StatusCode: 502, Message: "bad gateway"}
	sess := session.New("k", nil)

	resp, err := NewPipeline(&fakeUpstream{openErr: cause}, Options{}).Complete(context.Background(), beginRun(t, sess), newRequest("hi"))

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Request failed: upstream returned status 502: bad gateway", FailureMessage(err))
	assert.False(t, sess.Running())
}

func TestStreamAndCompleteProduceSameText(t *testing.T) {
	transcripts := map[string][]*upstream.Event{
		"single block split across fragments": thinkingTranscript(),
		"no markup": {
			message("c1", "m1", "plain "),
			message("c1", "m1", "text"),
		},
		"empty block": {
			message("c1", "m1", "before "+start),
			message("c1", "m1", end+" after"),
		},
		"unterminated block": {
			message("c1", "m1", start+"still thinking</de"),
		},
	}

	for name, events := range transcripts {
		t.Run(name, func(t *testing.T) {
			p := NewPipeline(&fakeUpstream{events: events}, Options{})

			w := &recordingWriter{}
			require.NoError(t, p.Stream(context.Background(), beginRun(t, session.New("a", nil)), newRequest("q"), w))

			resp, err := p.Complete(context.Background(), beginRun(t, session.New("b", nil)), newRequest("q"))
			require.NoError(t, err)

			assert.Equal(t, resp.Choices[0].Message.Content, w.text())
		})
	}
}

func TestReset(t *testing.T) {
	notifier := &recordingNotifier{}
	sess := session.New("k", notifier)

	run := beginRun(t, sess)
	run.ObserveMessage("c1", "m1")

	w := &recordingWriter{}
	err := NewPipeline(&fakeUpstream{}, Options{}).Reset(context.Background(), sess, "gpt-4o-mini", "对话已重置", w)
	require.NoError(t, err)

	require.Len(t, w.chunks, 1)
	assert.Equal(t, "对话已重置", w.chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "gpt-4o-mini", w.chunks[0].Model)
	assert.Nil(t, w.chunks[0].Choices[0].FinishReason)
	assert.Equal(t, 1, w.done)

	assert.Equal(t, []string{"m1"}, notifier.stopped())
	assert.Equal(t, session.State{}, sess.State())
	assert.False(t, run.Running())
}

func TestReset_IdleSessionSendsNoStop(t *testing.T) {
	notifier := &recordingNotifier{}
	sess := session.New("k", notifier)

	run := beginRun(t, sess)
	run.ObserveMessage("c1", "m1")
	run.Finish()

	err := NewPipeline(&fakeUpstream{}, Options{}).Reset(context.Background(), sess, "o3-mini", "reset", &recordingWriter{})
	require.NoError(t, err)

	assert.Empty(t, notifier.stopped())
	assert.Equal(t, session.State{}, sess.State())
}

func TestReset_WriteFailure(t *testing.T) {
	w := &recordingWriter{onChunk: func(int) error { return errClientGone }}

	err := NewPipeline(&fakeUpstream{}, Options{}).Reset(context.Background(), session.New("k", nil), "m", "reset", w)
	assert.ErrorIs(t, err, errClientGone)
	assert.Zero(t, w.done)
}

func TestFailureMessage_MasksCredentials(t *testing.T) {
	msg := FailureMessage(errors.New("upstream rejected Bearer app-abcdef123456"))

	assert.True(t, strings.HasPrefix(msg, "Request failed: "))
	assert.NotContains(t, msg, "app-abcdef123456")
}
