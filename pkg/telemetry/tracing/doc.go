// Package tracing provides OpenTelemetry distributed tracing for the relay.
//
// # Overview
//
// Spans are exported over OTLP gRPC. When tracing is disabled the Tracer
// hands out noop spans, so callers never branch on configuration.
//
// The relay creates these spans:
//   - "POST /v1/chat/completions": the server span of each HTTP request
//   - relay.stream: one streaming request cycle
//   - relay.complete: one non-streaming request cycle
//   - upstream.open_stream: the POST that opens the upstream event stream
//   - upstream.stop: a stop notification for a cancelled message
//
// # Trace Context Propagation
//
// Tracer.HTTPMiddleware continues the W3C Trace Context (traceparent,
// tracestate) of incoming requests and returns the trace ID in X-Trace-ID.
// The upstream client injects the context into outgoing requests:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// # Sampling Strategies
//
// The sampler is always, never or ratio. The OTEL_TRACES_SAMPLER names
// (always_on, parentbased_traceidratio, ...) are accepted as aliases. A
// sampled parent from the caller is always honoured.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanRelayStream)
//	defer span.End()
//	tracing.SetRequestAttributes(span, requestID, session, model, true)
package tracing
