// Package telemetry sets up OpenTelemetry tracing. Tracing is opt-in: with
// no exporter endpoint configured every tracer is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pagetrail/pagetrail-server/internal/config"
)

// Provider owns the process tracer provider. It is passed explicitly to
// whatever needs a tracer; nothing is registered globally.
type Provider struct {
	tp         trace.TracerProvider
	propagator propagation.TextMapPropagator
	shutdown   func(context.Context) error
}

// Setup builds a Provider from cfg. When cfg has no endpoint the provider
// is a no-op and Shutdown does nothing.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	if !cfg.Enabled() {
		return Noop(), nil
	}

	opts := []otlptracehttp.Option{}
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	return &Provider{
		tp:         tp,
		propagator: propagation.TraceContext{},
		shutdown:   tp.Shutdown,
	}, nil
}

// Noop returns a provider whose spans are discarded.
func Noop() *Provider {
	return &Provider{
		tp:         noop.NewTracerProvider(),
		propagator: propagation.TraceContext{},
		shutdown:   func(context.Context) error { return nil },
	}
}

// FromTracerProvider wraps an existing provider, typically an in-memory
// recorder in tests.
func FromTracerProvider(tp trace.TracerProvider) *Provider {
	return &Provider{
		tp:         tp,
		propagator: propagation.TraceContext{},
		shutdown:   func(context.Context) error { return nil },
	}
}

// Tracer returns a named tracer.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Propagator extracts and injects W3C trace context.
func (p *Provider) Propagator() propagation.TextMapPropagator {
	return p.propagator
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
