// Package telemetry sets up the OpenTelemetry meter and tracer providers.
//
// Metrics and traces are exported over OTLP gRPC when an endpoint is
// configured. Without one, metrics use the global no-op provider and traces
// are either dropped or written to stdout for local debugging.
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Config{
//	    ServiceName:  "emissions-api",
//	    OTLPEndpoint: "otel-collector:4317",
//	})
//	defer shutdown(ctx)
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds telemetry configuration.
type Config struct {
	// ServiceName is the name of the service (e.g., "emissions-api").
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Environment is the deployment environment (e.g., "development", "production").
	Environment string

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g., "localhost:4317").
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0). Default is 1.0.
	SampleRate float64

	// StdoutTraces writes traces to stdout when no OTLP endpoint is set.
	StdoutTraces bool

	// MetricInterval is the export interval for metrics. Default is 15s.
	MetricInterval time.Duration

	// traceWriter overrides stdout in tests.
	traceWriter io.Writer
}

// ConfigDefaults returns default configuration.
func ConfigDefaults() Config {
	return Config{
		ServiceName:    "emissions-api",
		ServiceVersion: "dev",
		Environment:    "development",
		SampleRate:     1.0,
		MetricInterval: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := ConfigDefaults()
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = d.MetricInterval
	}
	if c.traceWriter == nil {
		c.traceWriter = os.Stdout
	}
	return c
}

func newResource(config Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironmentName(config.Environment),
		),
	)
}

// Init initializes metrics and tracing and returns one shutdown function
// that flushes both.
func Init(ctx context.Context, config Config) (shutdown func(context.Context) error, err error) {
	shutdownMetrics, err := InitMetrics(ctx, config)
	if err != nil {
		return nil, err
	}
	shutdownTracer, err := InitTracer(ctx, config)
	if err != nil {
		_ = shutdownMetrics(ctx)
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(shutdownTracer(ctx), shutdownMetrics(ctx))
	}, nil
}

// InitMetrics initializes the global meter provider with an OTLP exporter.
// Without an endpoint the global no-op provider is left in place.
func InitMetrics(ctx context.Context, config Config) (shutdown func(context.Context) error, err error) {
	config = config.withDefaults()
	if config.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := newResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(config.MetricInterval))),
	)
	otel.SetMeterProvider(meterProvider)

	return meterProvider.Shutdown, nil
}

// InitTracer initializes the global tracer provider and propagator.
func InitTracer(ctx context.Context, config Config) (shutdown func(context.Context) error, err error) {
	config = config.withDefaults()

	exporter, conn, err := newSpanExporter(ctx, config)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		otel.SetTextMapPropagator(propagator())
		return func(context.Context) error { return nil }, nil
	}

	res, err := newResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator())

	return tracerShutdown(tp, conn), nil
}

// tracerShutdown flushes tp and then closes the exporter's gRPC connection,
// which the exporter does not own when built WithGRPCConn.
func tracerShutdown(tp *sdktrace.TracerProvider, conn *grpc.ClientConn) func(context.Context) error {
	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if conn != nil {
			if closeErr := conn.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to close gRPC connection: %w", closeErr))
			}
		}
		return err
	}
}

// newSpanExporter returns a nil exporter when traces are disabled. The
// connection is non-nil only for the OTLP exporter.
func newSpanExporter(ctx context.Context, config Config) (sdktrace.SpanExporter, *grpc.ClientConn, error) {
	if config.OTLPEndpoint != "" {
		conn, err := grpc.NewClient(
			config.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		return exporter, conn, nil
	}
	if config.StdoutTraces {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(config.traceWriter), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil, nil
	}
	return nil, nil, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}
