package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is debug, info, warn or error.
	Level string
	// Format is json or text ("console" is accepted for text).
	Format string
	// Output defaults to os.Stderr.
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns JSON at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// level is shared by every logger built with New so the config watcher can
// change verbosity at runtime.
var level = new(slog.LevelVar)

var levelNames = map[slog.Level]string{
	slog.LevelDebug: "debug",
	slog.LevelInfo:  "info",
	slog.LevelWarn:  "warn",
	slog.LevelError: "error",
}

// New creates a logger writing cfg.Format to cfg.Output. It sets the
// shared level.
func New(cfg Config) (Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json", "":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	level.Set(parseLevel(cfg.Level))
	return wrap(slog.New(h)), nil
}

// NewNop returns a logger that discards everything. It leaves the shared
// level alone.
func NewNop() Logger {
	return wrap(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})))
}

// SetLevel changes the level of every logger built with New.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// GetLevel returns the current shared level name.
func GetLevel() string {
	if name, ok := levelNames[level.Level()]; ok {
		return name
	}
	return "info"
}

// parseLevel maps a level name to slog, falling back to info.
func parseLevel(name string) slog.Level {
	name = strings.ToLower(name)
	if name == "warning" {
		name = "warn"
	}
	for lvl, n := range levelNames {
		if n == name {
			return lvl
		}
	}
	return slog.LevelInfo
}

// slogLogger logs through slog with the context it was bound to, so
// handlers see the active span.
type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func wrap(l *slog.Logger) *slogLogger {
	return &slogLogger{logger: l, ctx: context.Background()}
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{logger: l.logger, ctx: ctx}
}

// Slog returns the *slog.Logger behind l, or slog.Default for other
// implementations.
func Slog(l Logger) *slog.Logger {
	if sl, ok := l.(*slogLogger); ok {
		return sl.logger
	}
	return slog.Default()
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	l, _ := New(DefaultConfig())
	defaultLogger.Store(l.(*slogLogger))
}

// SetDefault replaces the logger returned by Default. Loggers of other
// implementations are ignored.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
	}
}

// Default returns the process-wide logger, used by components built
// without one.
func Default() Logger {
	return defaultLogger.Load()
}
