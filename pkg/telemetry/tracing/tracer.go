package tracing

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/difyrelay/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "mercator-hq/difyrelay"

// Span names used by the relay.
const (
	SpanRelayStream        = "relay.stream"
	SpanRelayComplete      = "relay.complete"
	SpanUpstreamOpenStream = "upstream.open_stream"
	SpanUpstreamStop       = "upstream.stop"
)

var noopTracer = noop.NewTracerProvider().Tracer(instrumentationName)

// Tracer starts relay spans. A nil *Tracer is valid and records nothing.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// Option customizes an enabled Tracer.
type Option func(*options)

type options struct {
	serviceVersion string
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(o *options) { o.serviceVersion = version }
}

// New builds a Tracer from cfg. A disabled configuration yields Noop.
// Otherwise spans are batched to the OTLP gRPC collector at cfg.Endpoint;
// the connection is made lazily, so an absent collector does not block
// startup. Shut the tracer down to flush pending spans.
func New(cfg *config.TracingConfig, opts ...Option) (*Tracer, error) {
	if cfg == nil {
		return nil, errors.New("tracing config is nil")
	}
	if !cfg.Enabled {
		return Noop(), nil
	}

	// Fail on a bad sampler before creating the exporter.
	if _, err := newSampler(cfg); err != nil {
		return nil, err
	}

	exporter, err := newOTLPExporter(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithExporter(cfg, exporter, opts...)
}

// NewWithExporter creates an enabled Tracer that batches spans to exporter
// and installs it, with W3C trace context and baggage propagation, as the
// global OpenTelemetry provider. The exporter is shut down with the tracer.
func NewWithExporter(cfg *config.TracingConfig, exporter sdktrace.SpanExporter, opts ...Option) (*Tracer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sampler, err := newSampler(cfg)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if o.serviceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(o.serviceVersion))
	}
	res, err := resource.New(context.Background(),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		tracer:   provider.Tracer(instrumentationName),
		provider: provider,
	}, nil
}

// Noop returns a disabled tracer. Spans started from it still carry a
// parent span context found in ctx, so propagation keeps working.
func Noop() *Tracer {
	return &Tracer{tracer: noopTracer}
}

// Start creates a span that is a child of any span in ctx. End the span
// when the operation completes:
//
//	ctx, span := tracer.Start(ctx, tracing.SpanRelayStream)
//	defer span.End()
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil {
		return noopTracer.Start(ctx, name, opts...)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// ForceFlush exports all ended spans that have not been exported yet.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}

// Enabled reports whether spans are exported.
func (t *Tracer) Enabled() bool {
	return t != nil && t.provider != nil
}

func newOTLPExporter(cfg *config.TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}

	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// TraceID returns the hex trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// RecordResult sets the span status from the outcome of its operation. A
// nil err is Ok. Cancellation leaves the status unset and marks the span
// cancelled, since the caller went away rather than the operation failing.
// Any other error is recorded as an event and sets the Error status.
func RecordResult(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		span.SetAttributes(attribute.Bool(AttrCancelled, true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
