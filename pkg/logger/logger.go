package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the default logger. Output goes to stderr because stdout
// carries bulk output in stdout mode. Quiet raises the level to error.
func Setup(level string, format string, quiet bool) {
	slog.SetDefault(New(os.Stderr, level, format, quiet))
}

func New(w io.Writer, level string, format string, quiet bool) *slog.Logger {
	var handler slog.Handler
	lvl := parseLevel(level)
	if quiet {
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{
		Level: lvl,
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, contextKey{}, source)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if source, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("source", source)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
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
