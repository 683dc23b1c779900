// Package otel wires OpenTelemetry tracing for the shingling pipeline.
// Tracing is opt-in: without an endpoint the global provider stays the
// no-op default and span helpers cost nothing meaningful.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "revdrift"

// Config holds tracing configuration.
type Config struct {
	ServiceName       string
	ServiceVersion    string
	CollectorEndpoint string
	SamplingRate      float64 // 0.0 to 1.0
}

// DefaultConfig returns defaults suitable for local collectors.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:       "revdrift",
		ServiceVersion:    "1.0.0",
		CollectorEndpoint: "localhost:4317",
		SamplingRate:      1.0,
	}
}

// InitTracer installs a global tracer provider exporting to the OTLP gRPC
// collector. The returned provider must be shut down to flush spans.
func InitTracer(ctx context.Context, config *Config) (*sdktrace.TracerProvider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(config.CollectorEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return tp.Shutdown(ctx)
}

// StartSpan starts a span on the pipeline tracer.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordError records an error on a span and marks it failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Common attribute keys for grid configurations.
const (
	AttrDoc     = attribute.Key("doc.id")
	AttrVersion = attribute.Key("doc.version")
	AttrWindow  = attribute.Key("grid.w")
	AttrLambda  = attribute.Key("grid.lambda")
)

// GridAttributes builds the standard span attributes for one grid cell.
func GridAttributes(doc string, version, w int, lambda string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrDoc.String(doc),
		AttrVersion.Int(version),
		AttrWindow.Int(w),
		AttrLambda.String(lambda),
	}
}
