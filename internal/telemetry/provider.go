// Package telemetry wires OpenTelemetry tracing for feature runs.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	// globalProvider holds the current tracer provider
	globalProvider trace.TracerProvider
	// globalShutdown holds the shutdown function for the provider
	globalShutdown func(context.Context) error
	// providerMu protects access to global provider state
	providerMu sync.RWMutex
)

// createResource creates a resource with service information
func createResource(cfg Config) *resource.Resource {
	return resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterNone, "":
		return nil, nil
	case ExporterStdout:
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(out))
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

// InitProvider initializes the OpenTelemetry tracer provider
// Returns a shutdown function and any initialization error
func InitProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		SetTracerProvider(noop.NewTracerProvider(), nil)
		return Shutdown, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(createResource(cfg)),
	}
	if cfg.SampleRate < 1.0 {
		opts = append(opts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)))
	} else {
		opts = append(opts, sdktrace.WithSampler(sdktrace.AlwaysSample()))
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	SetTracerProvider(tp, tp.Shutdown)
	return Shutdown, nil
}

// SetTracerProvider installs tp as the process tracer provider. shutdown may
// be nil.
func SetTracerProvider(tp trace.TracerProvider, shutdown func(context.Context) error) {
	providerMu.Lock()
	defer providerMu.Unlock()

	if shutdown == nil {
		shutdown = func(context.Context) error { return nil }
	}
	globalProvider = tp
	globalShutdown = shutdown
	otel.SetTracerProvider(tp)
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context) error {
	providerMu.RLock()
	shutdown := globalShutdown
	providerMu.RUnlock()

	if shutdown != nil {
		return shutdown(ctx)
	}
	return nil
}

// GetTracerProvider returns the current global tracer provider
func GetTracerProvider() trace.TracerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()

	if globalProvider != nil {
		return globalProvider
	}
	return noop.NewTracerProvider()
}
