package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Key struct{}

var LoggerKey = Key{}

// LevelTrace is a custom trace level for slog
// Using LevelDebug - 4 which equals -8
const LevelTrace = slog.LevelDebug - 4

// Logger is the set of log functions the supervision core calls. Payloads are
// slog-style alternating key/value pairs. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

func ConfigLevelStringToSlogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

// Discard returns a Logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Named scopes l to a component. slog loggers get a "component" attribute,
// anything else gets the name prepended to each message.
func Named(l Logger, name string) Logger {
	if l == nil {
		return Discard()
	}
	if sl, ok := l.(*slog.Logger); ok {
		return sl.With(slog.String("component", name))
	}
	return &prefixLogger{inner: l, prefix: name + ": "}
}

type prefixLogger struct {
	inner  Logger
	prefix string
}

func (p *prefixLogger) Debug(msg string, args ...any) { p.inner.Debug(p.prefix+msg, args...) }
func (p *prefixLogger) Info(msg string, args ...any)  { p.inner.Info(p.prefix+msg, args...) }
func (p *prefixLogger) Error(msg string, args ...any) { p.inner.Error(p.prefix+msg, args...) }

// Options controls how the CLI logger is assembled.
type Options struct {
	Level string
	// File receives all records at Level. When empty, Console is used instead.
	File string
	// Console receives error records in a friendly format when File is set.
	Console io.Writer
}

// NewLogger builds the process logger. The returned closer releases the log
// file, if one was opened.
func NewLogger(opts Options) (*slog.Logger, func() error, error) {
	level := ConfigLevelStringToSlogLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	if strings.TrimSpace(opts.File) == "" {
		return slog.New(slog.NewTextHandler(console, handlerOpts)), func() error { return nil }, nil
	}

	path := os.ExpandEnv(opts.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handler := NewDualHandler(
		slog.NewTextHandler(f, handlerOpts),
		NewFriendlyErrorHandler(console),
	)
	return slog.New(handler), f.Close, nil
}
