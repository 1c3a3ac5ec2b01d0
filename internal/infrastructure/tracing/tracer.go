// Package tracing provides OpenTelemetry-based tracing for model evaluation
// and token counting.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the instrumentation name for evalrunner spans.
	TracerName = "github.com/jbctechsolutions/evalrunner"

	// Version is the instrumentation version.
	Version = "0.1.0"
)

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	Enabled      bool
	ExporterType ExporterType
	OTLPEndpoint string
	ServiceName  string
	Environment  string
	SampleRate   float64
	Output       io.Writer // stdout exporter only; defaults to os.Stdout
}

// DefaultConfig returns the default tracing configuration (disabled).
func DefaultConfig() Config {
	return Config{
		ExporterType: ExporterNone,
		ServiceName:  "evalrunner",
		Environment:  "development",
		SampleRate:   1.0,
	}
}

// Tracer wraps an OpenTelemetry tracer with evaluation-specific spans.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   Config
}

var (
	global   *Tracer
	globalMu sync.Mutex
)

// Init creates a tracer from cfg and installs it as the package default.
func Init(ctx context.Context, cfg Config) (*Tracer, error) {
	t, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	global = t
	globalMu.Unlock()
	return t, nil
}

// Default returns the installed tracer, or a no-op tracer.
func Default() *Tracer {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return &Tracer{
			tracer: otel.Tracer(TracerName),
			config: DefaultConfig(),
		}
	}
	return global
}

// New creates a new Tracer with the provided configuration.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.ExporterType == ExporterNone || cfg.ExporterType == "" {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(TracerName),
			config: cfg,
		}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(Version),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(Version)),
		provider: provider,
		config:   cfg,
	}, nil
}

func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// Start starts a new span with the given name.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Span is a thin handle over a started span.
type Span struct {
	span trace.Span
}

// StartLoadSpan starts a span for loading a model or tokenizer handle.
func (t *Tracer) StartLoadSpan(ctx context.Context, handle, backend, modelPath string) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, "model.load",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("load.handle", handle),
			attribute.String("backend.name", backend),
			attribute.String("model.path", modelPath),
		),
	)
	return ctx, &Span{span: span}
}

// StartRunSpan starts a span for a single EvalModel call.
func (t *Tracer) StartRunSpan(ctx context.Context, operation, kind, modelPath string) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, "model."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("model.kind", kind),
			attribute.String("model.path", modelPath),
		),
	)
	return ctx, &Span{span: span}
}

// StartCountSpan starts a span for counting tokens in one file.
func (t *Tracer) StartCountSpan(ctx context.Context, file string) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, "tokens.count_file",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("file.name", file)),
	)
	return ctx, &Span{span: span}
}

// SetTokens records input and output token counts.
func (s *Span) SetTokens(input, output int) {
	s.span.SetAttributes(
		attribute.Int("tokens.input", input),
		attribute.Int("tokens.output", output),
	)
}

// SetAttribute records a single attribute of a supported type.
func (s *Span) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	}
}

// End ends the span with success status.
func (s *Span) End() {
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
}

// EndWithError ends the span with error status.
func (s *Span) EndWithError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.End()
}

// Finish ends the span according to err.
func (s *Span) Finish(err error) {
	if err != nil {
		s.EndWithError(err)
		return
	}
	s.End()
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
