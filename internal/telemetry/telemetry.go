// Package telemetry records protocol and tool activity into OpenTelemetry.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/TIMPICKLE/langchian0.3-call-MCP"

// Instruments bundles the tracer and metric instruments shared by the server side.
type Instruments struct {
	tracer      trace.Tracer
	invocations metric.Int64Counter
	latency     metric.Float64Histogram
}

// New creates instruments bound to the given providers.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (*Instruments, error) {
	meter := mp.Meter(instrumentationName)

	invocations, err := meter.Int64Counter(
		"toolcall.tool.invocations",
		metric.WithDescription("Number of routed tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"toolcall.tool.latency",
		metric.WithDescription("Tool execution latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		tracer:      tp.Tracer(instrumentationName),
		invocations: invocations,
		latency:     latency,
	}, nil
}

// FromGlobal creates instruments from the globally registered providers.
func FromGlobal() (*Instruments, error) {
	return New(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// Noop returns instruments that record nothing.
func Noop() *Instruments {
	inst, _ := New(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	return inst
}

// StartRequest opens the span covering one protocol request.
func (i *Instruments) StartRequest(ctx context.Context, method string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "jsonrpc."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.system", "jsonrpc"), attribute.String("rpc.method", method)),
	)
}

// StartTool opens the span covering one tool invocation.
func (i *Instruments) StartTool(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attribute.String("tool_name", toolName)))
}

// EndTool records the outcome of one tool invocation and ends its span.
func (i *Instruments) EndTool(ctx context.Context, span trace.Span, toolName string, isError bool, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("tool_name", toolName),
		attribute.Bool("is_error", isError),
	}
	options := metric.WithAttributes(attrs...)
	i.invocations.Add(ctx, 1, options)
	i.latency.Record(ctx, elapsed.Seconds(), options)

	span.SetAttributes(attribute.Bool("is_error", isError))
	if isError {
		span.SetStatus(codes.Error, "tool reported an error")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// EndRequest marks a request span as failed when rpcCode is non-zero, then ends it.
func EndRequest(span trace.Span, rpcCode int, message string) {
	if rpcCode != 0 {
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", rpcCode))
		span.SetStatus(codes.Error, message)
	}
	span.End()
}
