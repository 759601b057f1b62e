// Package otelspan wires OpenTelemetry spans around job submission and
// action dispatch, in the Provider/StartSpan shape mbflow's
// internal/infrastructure/tracing package uses.
package otelspan

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds tracing configuration for a simulator run.
type Config struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRate  float64
}

// DefaultConfig returns tracing disabled, matching a run that doesn't
// care about span export.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "wrench",
		Endpoint:    "localhost:4318",
		Insecure:    true,
		SampleRate:  1.0,
	}
}

// Provider wraps the OpenTelemetry TracerProvider for lifecycle
// management. A nil *Provider is valid and yields a no-op tracer.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a Provider from cfg. Returns nil, nil if tracing is
// disabled, so callers can pass the result straight into StartAction
// without a nil check of their own.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

// Tracer returns the underlying tracer, or a no-op tracer for a nil
// Provider.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartJob starts a span covering a compound job's submission through
// its terminal outcome.
func (p *Provider) StartJob(ctx context.Context, jobID string) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "job."+jobID)
}

// StartAction starts a span covering a single action's dispatch and
// execution on a host.
func (p *Provider) StartAction(ctx context.Context, actionID string) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "action."+actionID)
}

// RecordError records err on the span in ctx, if one is recording.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
	}
}

// StartSpan starts a span via the process-wide global tracer
// (otel.SetTracerProvider's target), for call sites that don't carry
// their own *Provider reference. With tracing disabled this resolves to
// the otel package default no-op provider, so the call is always safe.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("wrench").Start(ctx, name)
}
