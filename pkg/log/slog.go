package log

import (
	"context"
	"log/slog"
)

// slogLogger adapts *slog.Logger to Logger. A leading error argument is
// attached under ErrAttrKey so ErrFmtHandler can add the stacktrace.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, errFirst(fields)...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, errFirst(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, errFirst(fields)...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, errFirst(fields)...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(errFirst(fields)...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

func errFirst(fields []any) []any {
	if len(fields) == 0 {
		return fields
	}
	if err, ok := fields[0].(error); ok {
		out := make([]any, 0, len(fields)+1)
		out = append(out, ErrAttr(err))
		return append(out, fields[1:]...)
	}
	return fields
}

type slogProvider struct {
	base  *slog.Logger
	level *slog.LevelVar
}

// NewSlogProvider returns a LoggerProvider backed by base. level may be nil
// when base's handler was not built around a LevelVar, SetLevel is then a no-op.
func NewSlogProvider(base *slog.Logger, level *slog.LevelVar) LoggerProvider {
	return &slogProvider{base: base, level: level}
}

func (p *slogProvider) GetLogger() Logger { return NewSlogLogger(p.base) }

func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return NewSlogLogger(p.base.With(ComponentKey, name))
}

func (p *slogProvider) SetLevel(level Level) {
	if p.level != nil {
		p.level.Set(slog.Level(level))
	}
}
