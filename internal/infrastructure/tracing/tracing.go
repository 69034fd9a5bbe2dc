// Package tracing wires up the OpenTelemetry SDK for the remote task
// HTTP surface and the scheduler's dispatch path: one span per scheduler
// dispatch (TracedDispatcher), plus the otelecho spans of the HTTP
// remote-task surface. Broker IPC frames are not traced.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls whether and where traces are exported. An empty
// Endpoint disables export; spans are still created (and discarded) so
// call sites never need to branch on whether tracing is enabled.
type Config struct {
	ServiceName string
	Endpoint    string // OTLP/HTTP collector address, e.g. "localhost:4318"
	Insecure    bool
}

// Provider owns the process's TracerProvider and must be shut down on
// exit to flush any buffered spans.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds and installs the global TracerProvider. With no
// Endpoint configured it still installs a provider with no exporter
// attached, so Tracer() always returns a working tracer.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: building resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("tracing: building OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}, nil
}

// Shutdown flushes buffered spans and releases exporter resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the named tracer, used for the span TracedDispatcher
// opens around each scheduler dispatch.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
