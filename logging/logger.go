package logging

import (
	"context"
	"log/slog"
)

type Field struct {
	Key   string
	Value any
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}

func (NopLogger) Info(string, ...Field) {}

func (NopLogger) Warn(string, ...Field) {}

func (NopLogger) Error(string, ...Field) {}

func With(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}

	return logger
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err is shorthand for F("error", err).
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Slog forwards to a *slog.Logger.
type Slog struct {
	l *slog.Logger
}

func NewSlog(l *slog.Logger) *Slog {
	if l == nil {
		l = slog.Default()
	}

	return &Slog{l: l}
}

func (s *Slog) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }

func (s *Slog) Info(msg string, fields ...Field) { s.log(slog.LevelInfo, msg, fields) }

func (s *Slog) Warn(msg string, fields ...Field) { s.log(slog.LevelWarn, msg, fields) }

func (s *Slog) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

// Named returns a logger tagging every record with component=name.
func (s *Slog) Named(name string) *Slog {
	return &Slog{l: s.l.With(slog.String("component", name))}
}

func (s *Slog) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			attrs = append(attrs, slog.String(f.Key, err.Error()))
			continue
		}

		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}

	s.l.LogAttrs(ctx, level, msg, attrs...)
}

// Named tags logger with a component name when it supports it.
func Named(logger Logger, name string) Logger {
	if s, ok := logger.(*Slog); ok {
		return s.Named(name)
	}

	return With(logger)
}
