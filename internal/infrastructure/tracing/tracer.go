// Package tracing provides OpenTelemetry-based distributed tracing infrastructure.
// It supports two exporters (stdout, OTLP) and provides domain-specific
// span helpers for preprocessing, scheduling, and driver execution tracing.
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
	// TracerName is the name used for the rasco tracer.
	TracerName = "github.com/jbctechsolutions/rasco"

	// Version is the semantic version of the tracer.
	Version = "1.0.0"
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
	Enabled      bool         // Whether tracing is enabled
	ExporterType ExporterType // Type of exporter to use
	OTLPEndpoint string       // OTLP collector endpoint (for OTLP exporter)
	ServiceName  string       // Service name for traces
	Environment  string       // Deployment environment (development, production)
	SampleRate   float64      // Sampling rate (0.0 to 1.0)
	Output       io.Writer    // Output for stdout exporter (defaults to os.Stdout)
}

// DefaultConfig returns sensible default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ExporterType: ExporterNone,
		ServiceName:  "rasco",
		Environment:  "development",
		SampleRate:   1.0,
	}
}

// Tracer wraps an OpenTelemetry tracer with domain-specific functionality.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   Config
}

// global is the package-level default tracer.
var (
	global     *Tracer
	globalOnce sync.Once
)

// Init initializes the global tracer with the provided configuration.
func Init(ctx context.Context, cfg Config) (*Tracer, error) {
	var err error
	globalOnce.Do(func() {
		global, err = New(ctx, cfg)
	})
	return global, err
}

// Default returns the global tracer, or a no-op tracer if not initialized.
func Default() *Tracer {
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
	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(TracerName),
			config: cfg,
		}, nil
	}

	// Create exporter
	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	// Create resource without merging with Default() to avoid schema URL conflicts.
	// The default resource's schema URL may conflict with our semconv version.
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

	// Create sampler
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0.0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Create tracer provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set global tracer provider
	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(Version)),
		provider: provider,
		config:   cfg,
	}, nil
}

// createExporter creates the appropriate exporter based on configuration.
func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		opts := []stdouttrace.Option{
			stdouttrace.WithPrettyPrint(),
		}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithInsecure(),
		}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown gracefully shuts down the tracer provider.
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

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// --- Domain-specific span helpers ---

// RunSpan represents one (taskset, utilization, index, algo) scheduling run.
type RunSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartRunSpan starts a span around an entire scheduling run.
func (t *Tracer) StartRunSpan(ctx context.Context, taskset, algo string) (context.Context, *RunSpan) {
	ctx, span := t.tracer.Start(ctx, "run.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.taskset", taskset),
			attribute.String("run.algo", algo),
		),
	)

	return ctx, &RunSpan{span: span, ctx: ctx}
}

// SetJobCount sets the number of jobs expanded into the hyperperiod.
func (rs *RunSpan) SetJobCount(count int) {
	rs.span.SetAttributes(attribute.Int("run.job_count", count))
}

// SetResult records whether the run produced a schedulable result.
func (rs *RunSpan) SetResult(schedulable bool, segments int) {
	rs.span.SetAttributes(
		attribute.Bool("run.schedulable", schedulable),
		attribute.Int("run.segments", segments),
	)
}

// End ends the run span with success status.
func (rs *RunSpan) End() {
	rs.span.SetStatus(codes.Ok, "run completed successfully")
	rs.span.End()
}

// EndWithError ends the run span with error status.
func (rs *RunSpan) EndWithError(err error) {
	rs.span.RecordError(err)
	rs.span.SetStatus(codes.Error, err.Error())
	rs.span.End()
}

// PreprocessSpan represents a deadline-decomposition preprocessing pass over one DAG.
type PreprocessSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartPreprocessSpan starts a span for preprocessing a single DAG.
func (t *Tracer) StartPreprocessSpan(ctx context.Context, dagIdx int) (context.Context, *PreprocessSpan) {
	ctx, span := t.tracer.Start(ctx, "preprocess.dag",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("preprocess.dag_idx", dagIdx),
		),
	)

	return ctx, &PreprocessSpan{span: span, ctx: ctx}
}

// SetDeadlineStats records the gamma and omega factors computed for the DAG.
func (ps *PreprocessSpan) SetDeadlineStats(gamma, omega float64) {
	ps.span.SetAttributes(
		attribute.Float64("preprocess.gamma", gamma),
		attribute.Float64("preprocess.omega", omega),
	)
}

// SetSubtaskCount sets the number of subtasks the DAG split into.
func (ps *PreprocessSpan) SetSubtaskCount(count int) {
	ps.span.SetAttributes(attribute.Int("preprocess.subtask_count", count))
}

// End ends the preprocessing span with success status.
func (ps *PreprocessSpan) End() {
	ps.span.SetStatus(codes.Ok, "preprocessing completed successfully")
	ps.span.End()
}

// EndWithError ends the preprocessing span with error status.
func (ps *PreprocessSpan) EndWithError(err error) {
	ps.span.RecordError(err)
	ps.span.SetStatus(codes.Error, err.Error())
	ps.span.End()
}

// ScheduleSpan represents the segment-by-segment scheduling loop for one run.
type ScheduleSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartScheduleSpan starts a span for the scheduling loop itself.
func (t *Tracer) StartScheduleSpan(ctx context.Context, numCPUs int) (context.Context, *ScheduleSpan) {
	ctx, span := t.tracer.Start(ctx, "schedule.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("schedule.num_cpus", numCPUs),
		),
	)

	return ctx, &ScheduleSpan{span: span, ctx: ctx}
}

// SetPartition records the cache-way/membw partition sizes chosen for a segment.
func (ss *ScheduleSpan) SetPartition(c, bw int) {
	ss.span.SetAttributes(
		attribute.Int("schedule.cache_ways", c),
		attribute.Int("schedule.membw_ways", bw),
	)
}

// SetSegmentCount sets the total number of segments emitted.
func (ss *ScheduleSpan) SetSegmentCount(count int) {
	ss.span.SetAttributes(attribute.Int("schedule.segment_count", count))
}

// End ends the schedule span with success status.
func (ss *ScheduleSpan) End() {
	ss.span.SetStatus(codes.Ok, "scheduling completed successfully")
	ss.span.End()
}

// EndWithError ends the schedule span with error status.
func (ss *ScheduleSpan) EndWithError(err error) {
	ss.span.RecordError(err)
	ss.span.SetStatus(codes.Error, err.Error())
	ss.span.End()
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
}

// SetAttribute sets an attribute on the current span.
func SetAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	}
}
