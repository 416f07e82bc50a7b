package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// LoggingMiddleware mirrors the teacher's internal/handlers/infra.go
// request logger, generalized to log/slog's structured call shape.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"durationMs", time.Since(start).Milliseconds(),
		)
	})
}
