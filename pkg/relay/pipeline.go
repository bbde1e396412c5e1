package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/difyrelay/pkg/proxy/types"
	"mercator-hq/difyrelay/pkg/session"
	"mercator-hq/difyrelay/pkg/telemetry/logging"
	"mercator-hq/difyrelay/pkg/telemetry/metrics"
	"mercator-hq/difyrelay/pkg/telemetry/tracing"
	"mercator-hq/difyrelay/pkg/transducer"
	"mercator-hq/difyrelay/pkg/upstream"

	"go.opentelemetry.io/otel/trace"
)

// Outcomes of a request cycle, used as span attributes and metric statuses.
const (
	outcomeCompleted   = "completed"
	outcomeFailed      = "upstream_error"
	outcomeDisconnect  = "disconnected"
	outcomeInterrupted = "interrupted"
)

// Upstream opens event streams against the chat backend.
type Upstream interface {
	OpenStream(ctx context.Context, req *upstream.ChatRequest) (upstream.EventStream, error)
}

// ChunkWriter delivers stream frames to the downstream caller. A write error
// means the caller is gone.
type ChunkWriter interface {
	WriteChunk(chunk *types.ChatCompletionStreamChunk) error
	WriteDone() error
}

// Options configures a Pipeline. Nil fields disable the corresponding
// telemetry.
type Options struct {
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
}

// Request is one relay cycle's input.
type Request struct {
	// Model is echoed in every chunk and response.
	Model string

	// Query is the user message forwarded upstream.
	Query string

	// Markers select the reasoning block to rewrite.
	Markers transducer.Markers
}

// Pipeline drives request cycles against an Upstream.
type Pipeline struct {
	upstream Upstream
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
}

// NewPipeline creates a pipeline that opens streams on up.
func NewPipeline(up Upstream, opts Options) *Pipeline {
	return &Pipeline{
		upstream: up,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
	}
}

// cycle is the per-request state of one Stream or Complete call.
type cycle struct {
	p       *Pipeline
	run     *session.Run
	req     *Request
	logger  *slog.Logger
	started time.Time

	events    int
	malformed int
	chunks    int
}

func (p *Pipeline) newCycle(ctx context.Context, run *session.Run, req *Request) *cycle {
	return &cycle{
		p:       p,
		run:     run,
		req:     req,
		logger:  logging.FromContext(ctx).With("component", "relay"),
		started: time.Now(),
	}
}

func (p *Pipeline) open(ctx context.Context, run *session.Run, query string) (upstream.EventStream, error) {
	state := run.State()
	return p.upstream.OpenStream(ctx, &upstream.ChatRequest{
		Query:           query,
		ConversationID:  state.ConversationID,
		ParentMessageID: state.ParentMessageID,
	})
}

// Stream relays one streaming request cycle to w.
//
// The run must have been obtained from Session.Begin; Stream releases it.
// Upstream failures are reported to the caller as a final error chunk
// followed by the terminal frame. When the caller goes away (w fails or ctx
// is cancelled) the upstream stream is closed, the run is cancelled and no
// terminal frame is written. Neither case is returned as an error.
//
// If the session is reset by another request while streaming, the cycle
// stops at the next event boundary and ends with the terminal frame.
func (p *Pipeline) Stream(ctx context.Context, run *session.Run, req *Request, w ChunkWriter) error {
	if req.Query == "" {
		run.Finish()
		return ErrNoUserMessage
	}

	ctx, span := p.tracer.Start(ctx, tracing.SpanRelayStream)
	defer span.End()

	c := p.newCycle(ctx, run, req)
	tr := transducer.New(req.Markers)

	stream, err := p.open(ctx, run, req.Query)
	if err != nil {
		if ctx.Err() != nil {
			return c.disconnect(span, nil, err)
		}
		return c.fail(span, w, err)
	}
	defer stream.Close()

	for {
		// Cancellation is observed between reads only.
		if ctx.Err() != nil {
			return c.disconnect(span, stream, ctx.Err())
		}
		if !run.Running() {
			return c.interrupted(span, stream, w)
		}

		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return c.disconnect(span, stream, err)
			}
			return c.fail(span, w, err)
		}

		if !c.dispatch(ev) || ev.Kind != upstream.KindMessage {
			continue
		}

		if err := c.emit(w, tr.Process(ev.Answer)); err != nil {
			return c.disconnect(span, stream, err)
		}
	}

	if rest := tr.Flush(); rest != "" {
		if err := c.emit(w, rest); err != nil {
			return c.disconnect(span, stream, err)
		}
	}
	if err := w.WriteDone(); err != nil {
		return c.disconnect(span, stream, err)
	}

	run.Finish()
	c.finish(span, metrics.ModeStream, outcomeCompleted)
	return nil
}

// Complete relays one non-streaming request cycle and returns the finished
// response.
//
// The cycle is detached from ctx cancellation and always runs to the end of
// the upstream stream. The reasoning markup is rewritten once over the full
// answer. Upstream failures are returned for the caller to render.
func (p *Pipeline) Complete(ctx context.Context, run *session.Run, req *Request) (*types.ChatCompletionResponse, error) {
	defer run.Finish()

	if req.Query == "" {
		return nil, ErrNoUserMessage
	}

	ctx, span := p.tracer.Start(context.WithoutCancel(ctx), tracing.SpanRelayComplete)
	defer span.End()

	c := p.newCycle(ctx, run, req)

	stream, err := p.open(ctx, run, req.Query)
	if err != nil {
		c.record(span, metrics.ModeComplete, outcomeFailed, err)
		return nil, err
	}
	defer stream.Close()

	// Unknown event kinds are dropped here as well.
	var full strings.Builder
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.record(span, metrics.ModeComplete, outcomeFailed, err)
			return nil, err
		}

		if c.dispatch(ev) && ev.Kind == upstream.KindMessage {
			full.WriteString(ev.Answer)
		}
	}

	tr := transducer.New(req.Markers)
	text := tr.Process(full.String()) + tr.Flush()

	c.finish(span, metrics.ModeComplete, outcomeCompleted)
	return NewCompletion(req.Model, text), nil
}

// Reset resets sess and writes the acknowledgement as a one-chunk stream.
func (p *Pipeline) Reset(ctx context.Context, sess *session.Session, model, message string, w ChunkWriter) error {
	started := time.Now()
	wasRunning := sess.Running()

	sess.Reset()

	if wasRunning {
		p.metrics.RecordCancellation(metrics.ReasonReset)
	}
	logging.FromContext(ctx).Info("session reset",
		"session", sess.Key(),
		"cancelled_running", wasRunning,
	)

	status := metrics.StatusSuccess
	err := w.WriteChunk(NewChunk(model, message, nil))
	if err == nil {
		p.metrics.RecordChunk()
		err = w.WriteDone()
	}
	if err != nil {
		status = metrics.StatusDisconnected
	}

	p.metrics.RecordRequest(metrics.ModeReset, status, time.Since(started))
	return err
}

// dispatch applies ev to the session and reports whether it is a usable
// record. Identifier updates are dropped by the run once it is no longer
// running.
func (c *cycle) dispatch(ev *upstream.Event) bool {
	switch ev.Kind {
	case upstream.KindMalformed:
		c.malformed++
		c.p.metrics.RecordMalformedEvent()
		c.logger.Debug("skipping malformed upstream event", "payload", ev.Raw)
		return false
	case upstream.KindUnknown:
		c.events++
		c.p.metrics.RecordUpstreamEvent(ev.Kind.String())
		c.logger.Debug("skipping unknown upstream event", "event", ev.Name)
		return false
	}

	c.events++
	c.p.metrics.RecordUpstreamEvent(ev.Kind.String())

	switch ev.Kind {
	case upstream.KindWorkflowStarted:
		c.run.SetConversationID(ev.ConversationID)
	case upstream.KindMessage:
		c.run.ObserveMessage(ev.ConversationID, ev.MessageID)
	case upstream.KindMessageEnd:
		c.run.SetParentMessageID(ev.MessageID)
	}
	return true
}

// emit writes one content chunk, even when content is empty.
func (c *cycle) emit(w ChunkWriter, content string) error {
	if err := w.WriteChunk(NewChunk(c.req.Model, content, nil)); err != nil {
		return err
	}
	c.chunks++
	c.p.metrics.RecordChunk()
	return nil
}

// fail reports err downstream as an error chunk and ends the stream.
func (c *cycle) fail(span trace.Span, w ChunkWriter, err error) error {
	c.logger.Error("upstream request failed",
		"error", err,
		"events", c.events,
		"chunks", c.chunks,
	)

	writeErr := w.WriteChunk(NewErrorChunk(c.req.Model, err))
	if writeErr == nil {
		c.chunks++
		c.p.metrics.RecordChunk()
		writeErr = w.WriteDone()
	}
	if writeErr != nil {
		c.logger.Debug("failed to report upstream error downstream", "error", writeErr)
	}

	c.run.Finish()
	c.record(span, metrics.ModeStream, outcomeFailed, err)
	return nil
}

// disconnect tears the cycle down after the caller went away.
func (c *cycle) disconnect(span trace.Span, stream upstream.EventStream, cause error) error {
	if stream != nil {
		_ = stream.Close()
	}
	c.run.Cancel()
	c.p.metrics.RecordCancellation(metrics.ReasonDisconnect)

	c.logger.Warn("client disconnected during streaming",
		"cause", cause,
		"chunks_sent", c.chunks,
	)
	c.finish(span, metrics.ModeStream, outcomeDisconnect)
	return nil
}

// interrupted ends a cycle whose session was reset from another request. The
// reset already notified the upstream.
func (c *cycle) interrupted(span trace.Span, stream upstream.EventStream, w ChunkWriter) error {
	_ = stream.Close()

	c.logger.Info("stream interrupted by session reset", "chunks_sent", c.chunks)

	if err := w.WriteDone(); err != nil {
		c.logger.Debug("failed to write terminal frame", "error", err)
	}
	c.run.Finish()
	c.finish(span, metrics.ModeStream, outcomeInterrupted)
	return nil
}

func (c *cycle) finish(span trace.Span, mode, outcome string) {
	c.record(span, mode, outcome, nil)
}

func (c *cycle) record(span trace.Span, mode, outcome string, err error) {
	duration := time.Since(c.started)

	state := c.run.State()
	tracing.SetConversationAttributes(span, state.ConversationID, state.CurrentMessageID)
	tracing.SetRelayResultAttributes(span, outcome, c.events, c.malformed, c.chunks)
	tracing.RecordResult(span, err)

	c.p.metrics.RecordRequest(mode, statusFor(outcome), duration)

	if outcome == outcomeCompleted {
		c.logger.Info("relay cycle completed",
			"mode", mode,
			"events", c.events,
			"malformed_events", c.malformed,
			"chunks", c.chunks,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

func statusFor(outcome string) string {
	switch outcome {
	case outcomeCompleted, outcomeInterrupted:
		return metrics.StatusSuccess
	case outcomeDisconnect:
		return metrics.StatusDisconnected
	default:
		return metrics.StatusUpstreamError
	}
}
