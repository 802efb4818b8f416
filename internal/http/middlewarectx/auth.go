// Package middlewarectx содержит middleware REST API биллинга: проверку JWT,
// ограничение частоты запросов и сбор метрик.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
)

// Key тип ключей контекста запроса.
type Key string

// Ключи контекста, которые заполняет JWTMiddleware.
const (
	MentorID Key = "mentor_id"
	Email    Key = "email"
)

// TokenParser проверяет токен доступа.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.Claims, error)
}

// JWTMiddleware проверяет заголовок Authorization: Bearer и кладет ID и email ментора в контекст.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("authorization header missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("authorization header required"))
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				log.Warn("invalid authorization header format")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid authorization header format"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimSpace(token))
			if err != nil {
				log.Warn("invalid token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), MentorID, claims.MentorID)
			ctx = context.WithValue(ctx, Email, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MentorIDFrom возвращает ID ментора из контекста запроса.
func MentorIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(MentorID).(string)
	return id, ok && id != ""
}
