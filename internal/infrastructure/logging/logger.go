// Package logging provides structured logging infrastructure for evalrunner.
// It wraps log/slog with context-aware logging, correlation IDs, and
// evaluation-specific log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// ModelKindKey is the context key for the EvalModel variant name.
	ModelKindKey contextKey = "model_kind"
	// BackendKey is the context key for backend names.
	BackendKey contextKey = "backend"
	// FileKey is the context key for the file being counted.
	FileKey contextKey = "file"
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

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelWarn,
		Format:     FormatText,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger.
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
}

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
	return Init(DefaultConfig())
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
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

	var handler slog.Handler
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

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

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

// SetLevel dynamically changes the log level.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(parseLevel(level))
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
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
	l.slogger.DebugContext(ctx, msg, enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, enrichArgs(ctx, args)...)
}

func enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+8)

	for _, key := range []contextKey{CorrelationIDKey, ModelKindKey, BackendKey, FileKey} {
		if v := ctx.Value(key); v != nil {
			enriched = append(enriched, string(key), v)
		}
	}

	return append(enriched, args...)
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

// WithNewCorrelationID adds a freshly generated correlation ID to the context.
func WithNewCorrelationID(ctx context.Context) context.Context {
	return WithCorrelationID(ctx, uuid.NewString())
}

// WithModelKind adds the EvalModel variant name to the context.
func WithModelKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, ModelKindKey, kind)
}

// WithBackend adds a backend name to the context.
func WithBackend(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, BackendKey, name)
}

// WithFile adds a file name to the context.
func WithFile(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, FileKey, name)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if s, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return s
	}
	return ""
}

// --- Domain-specific logging helpers ---

// LogModelLoad logs a handle being loaded from a backend.
func LogModelLoad(ctx context.Context, logger *Logger, handle, modelPath, device string) {
	logger.DebugContext(ctx, "loading handle",
		"handle", handle,
		"model_path", modelPath,
		"device", device,
	)
}

// LogModelLoaded logs a successful handle load.
func LogModelLoaded(ctx context.Context, logger *Logger, handle, modelPath string, duration time.Duration) {
	logger.InfoContext(ctx, "handle loaded",
		"handle", handle,
		"model_path", modelPath,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogRunComplete logs a completed generation.
func LogRunComplete(ctx context.Context, logger *Logger, inputTokens, outputTokens int, duration time.Duration) {
	logger.InfoContext(ctx, "run completed",
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogRunFailed logs a failed generation.
func LogRunFailed(ctx context.Context, logger *Logger, err error, duration time.Duration) {
	logger.ErrorContext(ctx, "run failed",
		"error", err.Error(),
		"duration_ms", duration.Milliseconds(),
	)
}

// LogFileCounted logs the token count of a single file.
func LogFileCounted(ctx context.Context, logger *Logger, tokens int, duration time.Duration) {
	logger.DebugContext(ctx, "file counted",
		"tokens", tokens,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogBackendRequest logs an outgoing backend request.
func LogBackendRequest(ctx context.Context, logger *Logger, backend, endpoint string) {
	logger.DebugContext(ctx, "backend request",
		"backend", backend,
		"endpoint", endpoint,
	)
}
