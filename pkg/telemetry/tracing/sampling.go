package tracing

import (
	"fmt"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"mercator-hq/difyrelay/pkg/config"
)

// Sampler strategies accepted in telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// samplerAliases maps the OTEL_TRACES_SAMPLER spellings onto ours.
var samplerAliases = map[string]string{
	"always_on":                SamplerAlways,
	"parentbased_always_on":    SamplerAlways,
	"always_off":               SamplerNever,
	"parentbased_always_off":   SamplerNever,
	"traceidratio":             SamplerRatio,
	"parentbased_traceidratio": SamplerRatio,
}

// newSampler builds the root sampler for cfg. It is always parent based: a
// caller's sampled traceparent is honoured whatever the local strategy.
func newSampler(cfg *config.TracingConfig) (sdktrace.Sampler, error) {
	strategy := strings.ToLower(cfg.Sampler)
	if alias, ok := samplerAliases[strategy]; ok {
		strategy = alias
	}

	var root sdktrace.Sampler
	switch strategy {
	case SamplerAlways:
		root = sdktrace.AlwaysSample()
	case SamplerNever:
		root = sdktrace.NeverSample()
	case SamplerRatio:
		if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
			return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %g", cfg.SampleRatio)
		}
		root = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	default:
		return nil, fmt.Errorf("unknown sampler %q (valid: always, never, ratio)", cfg.Sampler)
	}

	return sdktrace.ParentBased(root), nil
}
