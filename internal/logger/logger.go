// Package logger provides the logging abstraction used by the statement layer:
// a small leveled key-value interface, adapters for log/slog and zerolog, and a
// Sanitizer that keeps bound secrets out of log lines.
package logger

import "log/slog"

// Logger is a leveled logger taking alternating key-value pairs after the message.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything. It is the default.
type NoopLogger struct{}

func (*NoopLogger) Debug(string, ...any) {}
func (*NoopLogger) Info(string, ...any)  {}
func (*NoopLogger) Warn(string, ...any)  {}
func (*NoopLogger) Error(string, ...any) {}

// With returns a Logger that prepends args to every call on l. Binding onto a
// NoopLogger returns it unchanged.
func With(l Logger, args ...any) Logger {
	if _, ok := l.(*NoopLogger); ok || len(args) == 0 {
		return l
	}
	if b, ok := l.(*bound); ok {
		return &bound{next: b.next, args: append(append([]any(nil), b.args...), args...)}
	}
	return &bound{next: l, args: args}
}

type bound struct {
	next Logger
	args []any
}

func (b *bound) join(args []any) []any {
	return append(append(make([]any, 0, len(b.args)+len(args)), b.args...), args...)
}

func (b *bound) Debug(msg string, args ...any) { b.next.Debug(msg, b.join(args)...) }
func (b *bound) Info(msg string, args ...any)  { b.next.Info(msg, b.join(args)...) }
func (b *bound) Warn(msg string, args ...any)  { b.next.Warn(msg, b.join(args)...) }
func (b *bound) Error(msg string, args ...any) { b.next.Error(msg, b.join(args)...) }

// SlogAdapter adapts a *slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger, which must not be nil.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *SlogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
