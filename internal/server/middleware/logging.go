package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/fieldsync/internal/server/jwt"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the number of bytes written
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LoggingMiddleware создает middleware для логирования HTTP запросов
// Логирует метод, путь, статус, время выполнения, размер ответа и subject
// Значения полей и заголовок Authorization не логируются
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return LoggingWithSkip(logger, nil)
}

// LoggingWithSkip создает middleware с возможностью пропуска определенных путей
// Используется для /metrics и health checks
func LoggingWithSkip(logger *slog.Logger, skipPaths []string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// Subject появляется в контексте ниже по цепочке,
			// поэтому читаем его через общий указатель
			var claims *jwt.Claims
			next.ServeHTTP(wrapped, r.WithContext(withClaimsSink(r.Context(), &claims)))

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes_written", wrapped.written,
			}
			if claims != nil {
				attrs = append(attrs, "subject", claims.Subject)
			}

			logger.Log(r.Context(), level, "HTTP request", attrs...)
		})
	}
}

type claimsSinkKey struct{}

func withClaimsSink(ctx context.Context, sink **jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsSinkKey{}, sink)
}

// reportClaims передает claims логирующему middleware выше по цепочке
func reportClaims(ctx context.Context, claims *jwt.Claims) {
	if sink, ok := ctx.Value(claimsSinkKey{}).(**jwt.Claims); ok {
		*sink = claims
	}
}
