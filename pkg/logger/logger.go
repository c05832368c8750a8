package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Setup installs the default slog logger. Records below ERROR go to stdout
// and ERROR records go to stderr.
func Setup(level string, format string) {
	slog.SetDefault(New(os.Stdout, os.Stderr, level, format))
}

// New builds a logger that writes informational records to out and errors
// to errOut.
func New(out, errOut io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	return slog.New(&splitHandler{
		info: newHandler(out, format, opts),
		err:  newHandler(errOut, format, opts),
	})
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

type splitHandler struct {
	info slog.Handler
	err  slog.Handler
}

func (h *splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.info.Enabled(ctx, level)
}

func (h *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.err.Handle(ctx, r)
	}
	return h.info.Handle(ctx, r)
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{info: h.info.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{info: h.info.WithGroup(name), err: h.err.WithGroup(name)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
