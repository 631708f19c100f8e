package main

import (
	"context"
	"log/slog"

	"github.com/sirupsen/logrus"
)

// logrusHandler adapts a *logrus.Logger to slog.Handler so the core's
// log/slog calls end up formatted and leveled by logrus, the way this CLI's
// top-level logging is configured (mirroring the teacher pack's own
// logrus-based CLI logger), without the core ever importing logrus itself.
type logrusHandler struct {
	logger *logrus.Logger
	attrs  []slog.Attr
}

func newLogrusHandler(logger *logrus.Logger) slog.Handler {
	return &logrusHandler{logger: logger}
}

func (h *logrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return toLogrusLevel(level) <= h.logger.GetLevel()
}

func (h *logrusHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make(logrus.Fields, record.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	record.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})
	h.logger.WithFields(fields).Log(toLogrusLevel(record.Level), record.Message)
	return nil
}

func (h *logrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &logrusHandler{logger: h.logger, attrs: make([]slog.Attr, 0, len(h.attrs)+len(attrs))}
	next.attrs = append(next.attrs, h.attrs...)
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *logrusHandler) WithGroup(_ string) slog.Handler {
	// Groups aren't modeled by logrus.Fields; attrs are flattened instead.
	return h
}

func toLogrusLevel(level slog.Level) logrus.Level {
	switch {
	case level >= slog.LevelError:
		return logrus.ErrorLevel
	case level >= slog.LevelWarn:
		return logrus.WarnLevel
	case level >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
