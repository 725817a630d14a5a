// Package loggy is a thin structured-logging layer over log/slog.
package loggy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	mu           sync.RWMutex
	globalLogger *Logger
	initOnce     sync.Once
)

// Config configures the logger
type Config struct {
	Level      slog.Level
	Format     string // "json" or "text"
	Output     string // "stdout", "stderr", or a file path
	AddSource  bool
	TimeFormat string // empty keeps slog's default
}

// DefaultConfig returns the configuration used when nothing else is set
func DefaultConfig() Config {
	return Config{
		Level:      slog.LevelInfo,
		Format:     "text",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger and stamps each record with its call site
type Logger struct {
	slogger   *slog.Logger
	addSource bool
}

// New builds a Logger from cfg without touching the global logger
func New(cfg Config) (*Logger, error) {
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	return NewWithWriter(out, cfg), nil
}

// NewWithWriter builds a Logger that writes to w
func NewWithWriter(w io.Writer, cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.TimeFormat != "" {
		layout := cfg.TimeFormat
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format(layout))
				}
			}
			return a
		}
	}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{slogger: slog.New(h), addSource: cfg.AddSource}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Init initializes the global logger once. On failure the global logger
// falls back to a discarding logger and the error is returned.
func Init(cfg Config) error {
	var err error
	initOnce.Do(func() {
		var l *Logger
		l, err = New(cfg)
		if err != nil {
			NewNoopLogger()
			return
		}
		SetGlobalLogger(l)
	})
	return err
}

// GetGlobalLogger returns the global logger, which may be nil before Init
func GetGlobalLogger() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(l *Logger) {
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// NewNoopLogger creates a logger that discards everything and installs it
// as the global logger. Mostly used by tests.
func NewNoopLogger() *Logger {
	l := &Logger{slogger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
	SetGlobalLogger(l)
	return l
}

func (l *Logger) emit(level slog.Level, msg string, args ...any) {
	if l == nil || l.slogger == nil {
		return
	}
	ctx := context.Background()
	if !l.slogger.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	if l.addSource {
		// emit <- Logger.X or package X <- caller
		if _, file, line, ok := runtime.Caller(3); ok {
			r.AddAttrs(slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(file), line)))
		}
	}
	r.Add(args...)
	_ = l.slogger.Handler().Handle(ctx, r)
}

func (l *Logger) Debug(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.emit(slog.LevelError, msg, args...) }

// Debug logs at debug level on the global logger
func Debug(msg string, args ...any) { GetGlobalLogger().emit(slog.LevelDebug, msg, args...) }

// Info logs at info level on the global logger
func Info(msg string, args ...any) { GetGlobalLogger().emit(slog.LevelInfo, msg, args...) }

// Warn logs at warn level on the global logger
func Warn(msg string, args ...any) { GetGlobalLogger().emit(slog.LevelWarn, msg, args...) }

// Error logs at error level on the global logger
func Error(msg string, args ...any) { GetGlobalLogger().emit(slog.LevelError, msg, args...) }

// With returns a child logger carrying args on every record
func (l *Logger) With(args ...any) *Logger {
	if l == nil || l.slogger == nil {
		return l
	}
	return &Logger{slogger: l.slogger.With(args...), addSource: l.addSource}
}

// WithGroup returns a child logger that nests attributes under name
func (l *Logger) WithGroup(name string) *Logger {
	if l == nil || l.slogger == nil {
		return l
	}
	return &Logger{slogger: l.slogger.WithGroup(name), addSource: l.addSource}
}

// WithError attaches err and its concrete type
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With("error", err.Error(), "error_type", fmt.Sprintf("%T", err))
}

// With returns a child of the global logger
func With(args ...any) *Logger {
	return GetGlobalLogger().With(args...)
}

// Handler exposes the underlying slog handler. A nil logger discards.
func (l *Logger) Handler() slog.Handler {
	if l == nil || l.slogger == nil {
		return slog.DiscardHandler
	}
	return l.slogger.Handler()
}
