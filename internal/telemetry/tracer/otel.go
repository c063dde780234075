package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config holds tracing configuration.
type Config struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `koanf:"service_name"`

	// ServiceVersion is reported as service.version.
	ServiceVersion string `koanf:"-"`

	// Endpoint is the OTLP/HTTP collector address (host:port).
	// Empty disables export.
	Endpoint string `koanf:"endpoint"`

	// Insecure sends spans over plain HTTP.
	Insecure bool `koanf:"insecure"`

	// SampleRatio is the fraction of root spans sampled, in [0, 1].
	SampleRatio float64 `koanf:"sample_ratio"`
}

// DefaultConfig returns tracing defaults: no export, sample everything.
func DefaultConfig() Config {
	return Config{
		ServiceName: "stockgate",
		SampleRatio: 1.0,
	}
}

// Provider owns the SDK tracer provider.
type Provider struct {
	tp        *sdktrace.TracerProvider
	exporting bool
}

// Option customizes the provider.
type Option func(*[]sdktrace.TracerProviderOption)

// WithSpanProcessor adds a span processor, typically a tracetest recorder.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(opts *[]sdktrace.TracerProviderOption) {
		*opts = append(*opts, sdktrace.WithSpanProcessor(sp))
	}
}

// New creates a tracer provider and installs it, together with the W3C
// trace-context propagator, as the global default.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("tracer: sample ratio %v out of range [0,1]", cfg.SampleRatio)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "stockgate"
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	p := &Provider{}
	if cfg.Endpoint != "" {
		exOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exOpts = append(exOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, exOpts...)
		if err != nil {
			return nil, fmt.Errorf("tracer: create otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		p.exporting = true
	}
	for _, opt := range opts {
		opt(&tpOpts)
	}

	p.tp = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// Exporting reports whether spans are sent to a collector.
func (p *Provider) Exporting() bool { return p.exporting }

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
