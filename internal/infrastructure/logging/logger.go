// Package logging provides structured logging infrastructure for the rasco scheduler.
// It wraps Go's standard log/slog package with context-aware logging, correlation IDs,
// and domain-specific log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// RunIDKey is the context key for a single (taskset, util, idx, algo) run.
	RunIDKey contextKey = "run_id"
	// TasksetIDKey is the context key for the task set directory being processed.
	TasksetIDKey contextKey = "taskset_id"
	// AlgoKey is the context key for which scheduling algorithm variant is active.
	AlgoKey contextKey = "algo"
)

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with additional functionality for rasco.
type Logger struct {
	slogger *slog.Logger
	level   slog.Level
	mu      sync.RWMutex
}

// global is the package-level default logger.
var (
	global     *Logger
	globalOnce sync.Once
)

// Init initializes the global logger with the provided configuration.
func Init(cfg Config) *Logger {
	globalOnce.Do(func() {
		global = New(cfg)
	})
	return global
}

// Default returns the global logger, initializing it with defaults if necessary.
func Default() *Logger {
	if global == nil {
		Init(DefaultConfig())
	}
	return global
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize time format
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
	}
}

// parseLevel converts a Level to slog.Level.
func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel records level on the Logger. The handler built by New keeps the
// threshold it was created with, so this does not change which records are
// emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = parseLevel(level)
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
	}
}

// WithGroup returns a new Logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		slogger: l.slogger.WithGroup(name),
		level:   l.level,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func (l *Logger) enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+10)

	// Extract standard context values
	if v := ctx.Value(CorrelationIDKey); v != nil {
		enriched = append(enriched, "correlation_id", v)
	}
	if v := ctx.Value(RunIDKey); v != nil {
		enriched = append(enriched, "run_id", v)
	}
	if v := ctx.Value(TasksetIDKey); v != nil {
		enriched = append(enriched, "taskset_id", v)
	}
	if v := ctx.Value(AlgoKey); v != nil {
		enriched = append(enriched, "algo", v)
	}

	enriched = append(enriched, args...)
	return enriched
}

// Underlying returns the underlying slog.Logger.
func (l *Logger) Underlying() *slog.Logger {
	return l.slogger
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// WithTasksetID adds a task set identifier to the context.
func WithTasksetID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TasksetIDKey, id)
}

// WithAlgo adds the active scheduling algorithm name to the context.
func WithAlgo(ctx context.Context, algo string) context.Context {
	return context.WithValue(ctx, AlgoKey, algo)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if v := ctx.Value(CorrelationIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CorrelationIDFromContext is an alias for CorrelationID for semantic clarity.
func CorrelationIDFromContext(ctx context.Context) string {
	return CorrelationID(ctx)
}

// --- Domain-specific logging helpers ---

// LogRunStart logs the start of a (taskset, util, idx, algo) run.
func LogRunStart(ctx context.Context, logger *Logger, taskset string, util string, idx int, algo string) {
	logger.InfoContext(ctx, "run started",
		"taskset", taskset,
		"util", util,
		"idx", idx,
		"algo", algo,
	)
}

// LogRunComplete logs the completion of a run.
func LogRunComplete(ctx context.Context, logger *Logger, taskset string, duration time.Duration, segments int, schedulable bool) {
	logger.InfoContext(ctx, "run completed",
		"taskset", taskset,
		"duration_ms", duration.Milliseconds(),
		"segments", segments,
		"schedulable", schedulable,
	)
}

// LogRunFailed logs a failed run.
func LogRunFailed(ctx context.Context, logger *Logger, taskset string, err error, duration time.Duration) {
	logger.ErrorContext(ctx, "run failed",
		"taskset", taskset,
		"error", err.Error(),
		"duration_ms", duration.Milliseconds(),
	)
}

// LogPreprocessComplete logs the completion of deadline-decomposition preprocessing for one DAG.
func LogPreprocessComplete(ctx context.Context, logger *Logger, dagIdx int, util, gamma, omega float64) {
	logger.DebugContext(ctx, "preprocessing completed",
		"dag_idx", dagIdx,
		"util", util,
		"gamma", gamma,
		"omega", omega,
	)
}

// LogSegmentEmitted logs one emitted schedule segment.
func LogSegmentEmitted(ctx context.Context, logger *Logger, t int64, occupied, idle int) {
	logger.DebugContext(ctx, "segment emitted",
		"t", t,
		"occupied_cores", occupied,
		"idle_cores", idle,
	)
}

// LogPhaseTableMiss logs a phase-table lookup miss.
func LogPhaseTableMiss(ctx context.Context, logger *Logger, taskID string, c, bw int) {
	logger.WarnContext(ctx, "phase table miss",
		"task_id", taskID,
		"cache", c,
		"membw", bw,
	)
}

// LogRunSkipped logs a run skipped because the ledger already recorded it complete.
func LogRunSkipped(ctx context.Context, logger *Logger, taskset string, util string, idx int, algo string) {
	logger.InfoContext(ctx, "run skipped, already recorded in ledger",
		"taskset", taskset,
		"util", util,
		"idx", idx,
		"algo", algo,
	)
}
