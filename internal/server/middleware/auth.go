package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/fieldsync/internal/server/jwt"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
// Claims кладутся в контекст запроса, см. jwt.ClaimsFromContext
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				logger.Warn("Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token format")
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			logger.Debug("Request authenticated", "subject", claims.Subject)
			reportClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(jwt.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireScope rejects requests whose token lacks scope. It must run after
// AuthMiddleware.
func RequireScope(logger *slog.Logger, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := jwt.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
				return
			}
			if !claims.HasScope(scope) {
				logger.Warn("Scope denied",
					"subject", claims.Subject,
					"scope", scope,
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusForbidden, "forbidden", "token lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
