package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InitOTel configures a global TracerProvider exporting spans to the given
// OTLP/HTTP endpoint, and returns a tracer for the service plus a shutdown
// func to flush and close the exporter. Returns an error if endpoint is
// empty; callers should treat that as "tracing disabled", not fatal.
func InitOTel(ctx context.Context, endpoint, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	if endpoint == "" {
		return nil, nil, errors.New("otlp endpoint is required")
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, nil, fmt.Errorf("init trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Tracer(serviceName), tp.Shutdown, nil
}
