package otelinit

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Metrics holds the small set of cross-cutting instruments every service records.
type Metrics struct {
	RetryAttempts          metric.Int64Counter
	CircuitOpenTransitions metric.Int64Counter
}

// InitMetrics installs a global MeterProvider with a periodic OTLP/gRPC reader and
// returns a shutdown function plus the common instrument set.
func InitMetrics(ctx context.Context, service string) (func(context.Context) error, Metrics) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return func(context.Context) error { return nil }, Metrics{}
	}

	exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return func(context.Context) error { return nil }, Metrics{}
	}

	res, _ := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(service)))

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, createCommonInstruments(service)
}

func createCommonInstruments(service string) Metrics {
	meter := otel.GetMeterProvider().Meter(service)
	retryAttempts, _ := meter.Int64Counter("agentmind_retry_attempts_total")
	circuitTransitions, _ := meter.Int64Counter("agentmind_circuit_open_transitions_total")
	return Metrics{RetryAttempts: retryAttempts, CircuitOpenTransitions: circuitTransitions}
}
