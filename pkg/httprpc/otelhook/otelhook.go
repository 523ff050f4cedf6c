// Package otelhook provides OpenTelemetry instrumentation for httprpc clients. It implements
// [httprpc.ExecutionHook]: every execution gets a client span, the trace context is
// propagated in the request headers, and request counts and durations are recorded.
//
// Usage:
//
//	client := httprpc.NewClient(httprpc.WithHook(otelhook.New(otelhook.DefaultConfig())))
package otelhook

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tansive/httprpc/pkg/httprpc"
)

const instrumentationName = "github.com/tansive/httprpc"

// Config configures the instrumentation.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator injects the trace context into request headers.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	EnableTracing    bool
	EnableMetrics    bool
	RecordExceptions bool
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig enables tracing, metrics and error recording. Providers are resolved from
// the global OpenTelemetry SDK when the hook is created.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

type hook struct {
	cfg               Config
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// New returns an execution hook.
func New(cfg Config) httprpc.ExecutionHook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}

	h := &hook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}
	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		h.requestCounter, _ = meter.Int64Counter("rpc.client.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of RPC client requests"),
		)
		h.durationHistogram, _ = meter.Float64Histogram("rpc.client.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of RPC client requests"),
		)
	}
	return h
}

type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnExecuteStart starts a client span and injects its context into the request headers.
func (h *hook) OnExecuteStart(ctx context.Context, info httprpc.ExecutionInfo) (context.Context, httprpc.HookToken) {
	tok := &spanToken{startTime: time.Now()}
	if h.cfg.EnableTracing {
		attrs := append(baseAttributes(info),
			attribute.String("url.full", info.URL),
			attribute.String("rpc.request_id", info.RequestID),
			attribute.Bool("rpc.async", info.Async),
		)
		attrs = append(attrs, h.cfg.CustomAttributes...)
		ctx, tok.span = h.tracer.Start(ctx, "httprpc/"+info.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
	}
	if h.cfg.Propagator != nil && info.Headers != nil {
		h.cfg.Propagator.Inject(ctx, propagation.MapCarrier(info.Headers))
	}
	return ctx, tok
}

// OnExecuteEnd records metrics and ends the span.
func (h *hook) OnExecuteEnd(ctx context.Context, token httprpc.HookToken, info httprpc.ExecutionInfo, result httprpc.ExecutionResult) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	status := "ok"
	if result.Err != nil {
		status = "error"
	}
	if h.cfg.EnableMetrics {
		attrs := metric.WithAttributes(append(baseAttributes(info),
			attribute.String("status", status),
			attribute.Int("http.response.status_code", result.StatusCode),
		)...)
		if h.requestCounter != nil {
			h.requestCounter.Add(ctx, 1, attrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, time.Since(st.startTime).Seconds(), attrs)
		}
	}

	if st.span == nil || !st.span.IsRecording() {
		return
	}
	if result.StatusCode != 0 {
		st.span.SetAttributes(attribute.Int("http.response.status_code", result.StatusCode))
	}
	st.span.SetAttributes(attribute.Float64("rpc.latency_ms", float64(result.Latency.Microseconds())/1000))
	if result.Err != nil {
		st.span.SetStatus(codes.Error, result.Err.Error())
		if h.cfg.RecordExceptions {
			st.span.RecordError(result.Err)
		}
		st.span.SetAttributes(attribute.String("rpc.error_type", errorType(result.Err)))
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
	st.span.End()
}

func baseAttributes(info httprpc.ExecutionInfo) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("rpc.system", "httprpc"),
		attribute.String("rpc.method", info.Method),
		attribute.String("http.request.method", info.Verb.HTTPMethod()),
		attribute.String("rpc.httprpc.verb", info.Verb.String()),
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, httprpc.ErrRemoteStatus):
		return "remote_status"
	case errors.Is(err, httprpc.ErrTransport):
		return "transport"
	case errors.Is(err, httprpc.ErrCancelled):
		return "cancelled"
	}
	return "other"
}
