package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/configs"
)

const serviceName = "toolcall"

// otelProviders holds what initOtelProvider installed globally.
type otelProviders struct {
	reader   *sdkmetric.ManualReader
	shutdown func(context.Context) error
}

// initOtelProvider installs a meter provider backed by an in-process reader and,
// when an OTLP endpoint is configured, a tracer provider exporting over gRPC.
func initOtelProvider(ctx context.Context, cfg *configs.Config, logger *slog.Logger) (*otelProviders, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(cfg.ServerVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(r))
	otel.SetMeterProvider(mp)

	providers := &otelProviders{reader: reader, shutdown: mp.Shutdown}

	if cfg.OtelExporterOtlpEndpoint == "" {
		logger.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return providers, nil
	}

	logger.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		logger.Warn("Using insecure connection for OTLP exporter.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	logger.Info("OpenTelemetry TracerProvider configured.")

	providers.shutdown = func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), conn.Close(), mp.Shutdown(ctx))
	}
	return providers, nil
}

// logMetricsSummary writes the collected tool invocation totals to the log.
func (p *otelProviders) logMetricsSummary(ctx context.Context, logger *slog.Logger) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		logger.Warn("Failed to collect metrics", slog.Any("error", err))
		return
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				tool, _ := dp.Attributes.Value("tool_name")
				isError, _ := dp.Attributes.Value("is_error")
				logger.Info("Metric total",
					slog.String("metric", m.Name),
					slog.String("tool_name", tool.AsString()),
					slog.Bool("is_error", isError.AsBool()),
					slog.Int64("value", dp.Value))
			}
		}
	}
}
