// Package otelinit wires up OpenTelemetry tracing and metrics against an OTLP/gRPC collector.
package otelinit

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InitTracer installs a global TracerProvider exporting spans over OTLP/gRPC and
// returns a shutdown function.
func InitTracer(ctx context.Context, service string) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return func(context.Context) error { return nil }
	}

	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return func(context.Context) error { return nil }
	}

	res, _ := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(service)))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown
}

// WithSpan starts a span named name on the global tracer for service-internal use.
func WithSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("agentmind").Start(ctx, name)
}

// Flush runs shutdown with a bounded timeout, logging nothing on its own; callers log the error.
func Flush(ctx context.Context, shutdown func(context.Context) error) error {
	if shutdown == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return shutdown(c)
}
