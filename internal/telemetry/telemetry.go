package telemetry

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Trace modes, cheapest first. "errors" keeps a low-ratio trickle for failure
// forensics; "detailed" additionally wraps every outbound GitHub fetch in its
// own span (see ShouldTraceDependencies).
const (
	traceModeOff      = "off"
	traceModeErrors   = "errors"
	traceModeSampled  = "sampled"
	traceModeDetailed = "detailed"
)

// activeMode is the mode installed by the last Setup call. The HTTP layer
// and the fetch client consult it per request, so it is read far more often
// than written.
var activeMode atomic.Value

// Config configures tracing setup.
type Config struct {
	Enabled          bool
	ServiceName      string
	TraceMode        string
	TraceSampleRatio float64
}

// Runtime holds the installed tracer provider and its shutdown hook.
type Runtime struct {
	TracerProvider *sdktrace.TracerProvider
	Shutdown       func(ctx context.Context) error
}

// Setup installs the global tracer provider. Disabled telemetry still
// installs a provider so span calls remain cheap no-ops, with the mode
// forced to off.
func Setup(cfg Config) (Runtime, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "hackboard"
	}

	mode := canonicalMode(cfg.TraceMode)
	if !cfg.Enabled {
		mode = traceModeOff
	}
	activeMode.Store(mode)

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return Runtime{}, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(samplerForMode(mode, cfg.TraceSampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return Runtime{
		TracerProvider: provider,
		Shutdown:       provider.Shutdown,
	}, nil
}

// TraceMode reports the mode installed by the last Setup call, off until
// then.
func TraceMode() string {
	mode, _ := activeMode.Load().(string)
	if mode == "" {
		return traceModeOff
	}
	return mode
}

// ShouldTraceDependencies reports whether outbound GitHub fetches get their
// own spans. Only detailed mode pays for those.
func ShouldTraceDependencies() bool {
	return TraceMode() == traceModeDetailed
}

func samplerForMode(mode string, ratio float64) sdktrace.Sampler {
	switch canonicalMode(mode) {
	case traceModeOff:
		return sdktrace.NeverSample()
	case traceModeDetailed:
		return sdktrace.AlwaysSample()
	case traceModeErrors:
		// A background trickle: honor an explicit ratio but never run
		// unsampled.
		if ratio <= 0 {
			ratio = 0.01
		}
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(ratio)))
}

// canonicalMode folds unknown or empty modes into sampled, the safe middle
// ground.
func canonicalMode(mode string) string {
	switch mode = strings.ToLower(strings.TrimSpace(mode)); mode {
	case traceModeOff, traceModeErrors, traceModeDetailed:
		return mode
	default:
		return traceModeSampled
	}
}

func clampRatio(ratio float64) float64 {
	return math.Min(math.Max(ratio, 0), 1)
}
