package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ctxKey string

const (
	RequestIDKey        = "request_id"
	requestIDCtx ctxKey = RequestIDKey
)

// New builds a JSON logger on stdout. Unknown levels fall back to info.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDCtx, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDCtx).(string); ok {
		return s
	}
	return ""
}

func WithRequestID(ctx context.Context, l *slog.Logger) *slog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return l.With(slog.String(RequestIDKey, id))
}
