// Package log builds the loggers used by batchgen binaries: a zerolog console
// logger for human output and a slog bridge for the engine, which speaks
// *slog.Logger.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func New() *zerolog.Logger {
	var output io.Writer
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(output).With().Timestamp().Logger()
	return &logger
}

// Slog wraps a zerolog logger for APIs that take *slog.Logger.
func Slog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&zerologHandler{zl: zl})
}

type zerologHandler struct {
	zl    *zerolog.Logger
	attrs []slog.Attr
	group string
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slogLevel(h.zl.GetLevel())
}

func (h *zerologHandler) Handle(_ context.Context, rec slog.Record) error {
	ev := h.zl.WithLevel(zerologLevel(rec.Level))
	for _, a := range h.attrs {
		ev = appendAttr(ev, h.group, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		ev = appendAttr(ev, h.group, a)
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &zerologHandler{zl: h.zl, attrs: merged, group: h.group}
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	prefix := name
	if h.group != "" {
		prefix = h.group + "." + name
	}
	return &zerologHandler{zl: h.zl, attrs: h.attrs, group: prefix}
}

func appendAttr(ev *zerolog.Event, group string, a slog.Attr) *zerolog.Event {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	return ev.Interface(key, a.Value.Any())
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

func slogLevel(l zerolog.Level) slog.Level {
	switch l {
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return slog.LevelError
	case zerolog.WarnLevel:
		return slog.LevelWarn
	case zerolog.InfoLevel:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
