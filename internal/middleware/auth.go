package middleware

import (
	"net/http"

	"printlink-be/internal/apperr"
	"printlink-be/internal/auth"
	"printlink-be/internal/logger"
	"printlink-be/internal/utils"

	"go.uber.org/zap"
)

// AuthMiddleware resolves the caller from the access token. Requests without a
// token pass through anonymously; a token that fails verification is rejected.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Warn("rejected access token", zap.Error(err))
				utils.WriteJSONError(w, "invalid or expired token", string(apperr.CodeUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := utils.SetUserContext(r.Context(), claims.UserID, claims.Email, claims.Role, claims.FullName)
			ctx = logger.WithCallerID(ctx, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
