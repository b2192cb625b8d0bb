package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys.
type ContextKey string

// LoggerContextKey is the context key for the request-scoped logger.
const LoggerContextKey ContextKey = "logger"

// Middleware attaches a logger to every request's context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts the request-scoped logger, falling back to the
// process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: ComponentApp,
	}
}
