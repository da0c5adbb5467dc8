package middlewares

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/guildpoints/points-ledger/internal/model"
	"github.com/guildpoints/points-ledger/internal/utils/auth"
)

// Authentication guards the admin routes. It expects the session cookie
// issued by the login handler and stores the admin flag in the request
// context.
func Authentication(secret []byte, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		authFunc := func(w http.ResponseWriter, r *http.Request) {
			jwtCookie, err := r.Cookie("jwt-token")
			if err != nil {
				log.LogAttrs(r.Context(),
					slog.LevelError,
					"failed to find token in request",
				)
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			tokenStr := jwtCookie.Value
			if _, err := auth.CheckToken(tokenStr, secret); err != nil {
				log.LogAttrs(r.Context(),
					slog.LevelError,
					"authentication failed",
					slog.Any(model.KeyLoggerError, err),
				)
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			initial := r.Context()
			adminCtx := context.WithValue(
				initial, model.KeyContextAdmin, true)

			rAsAdmin := r.WithContext(adminCtx)
			next.ServeHTTP(w, rAsAdmin)
		}
		return http.HandlerFunc(authFunc)
	}
}
