package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
)

// Instruments holds the counters and histograms a reconciliation round
// reports. EstimatedDifferences and DecodedDifferences are recorded
// separately because the strata estimate is a sizing hint, not a result:
// comparing the two in a dashboard flags when decode undershoots or
// overshoots the estimate.
type Instruments struct {
	Rounds               metric.Int64Counter
	EstimatedDifferences metric.Int64Histogram
	DecodedDifferences   metric.Int64Histogram
	UndecodableRounds    metric.Int64Counter
	BytesExchanged       metric.Int64Counter
}

// InitMetrics sets up a global OTLP metrics exporter (push, periodic). The
// returned shutdown function must be called on process exit; if the
// exporter can't be reached the instruments still work, they simply go
// nowhere, matching the core library's fail-open behavior for an ambient
// concern.
func InitMetrics(ctx context.Context, service string) (shutdown func(context.Context) error, instr Instruments) {
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		attribute.String("service", service),
	))
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "error", err)
		return func(context.Context) error { return nil }, createInstruments()
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", endpoint)
	return mp.Shutdown, createInstruments()
}

func createInstruments() Instruments {
	meter := otel.Meter("setrecon")
	rounds, _ := meter.Int64Counter("setrecon_reconcile_rounds_total")
	estimated, _ := meter.Int64Histogram("setrecon_reconcile_estimated_differences")
	decoded, _ := meter.Int64Histogram("setrecon_reconcile_decoded_differences")
	undecodable, _ := meter.Int64Counter("setrecon_reconcile_undecodable_total")
	bytesExchanged, _ := meter.Int64Counter("setrecon_reconcile_bytes_total")
	return Instruments{
		Rounds:               rounds,
		EstimatedDifferences: estimated,
		DecodedDifferences:   decoded,
		UndecodableRounds:    undecodable,
		BytesExchanged:       bytesExchanged,
	}
}

// InitTracer configures a global tracer provider with an OTLP gRPC exporter.
func InitTracer(ctx context.Context, service string) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("trace exporter init failed", "error", err)
		return func(context.Context) error { return nil }
	}
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Info("tracer initialized", "endpoint", endpoint)
	return tp.Shutdown
}

// StartSpan is a thin convenience wrapper around the global tracer.
func StartSpan(ctx context.Context, name string) (context.Context, func()) {
	tr := otel.Tracer("setrecon")
	ctx, span := tr.Start(ctx, name)
	return ctx, span.End
}

// Flush runs shutdown with a bounded timeout, for use at the end of main.
func Flush(ctx context.Context, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
