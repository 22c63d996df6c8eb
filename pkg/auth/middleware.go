package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/qtx-rewards/pkg/app/errors"
	apphttp "github.com/chainsafe/qtx-rewards/pkg/app/http"
)

// TokenValidator validates a bearer token
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// Middleware rejects requests without a valid bearer token and stores the
// token subject as the user ID in the request context.
func Middleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.ValidateToken(bearerToken(r))
			if err != nil {
				logger.Debug("rejected request", zap.String("path", r.URL.Path), zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "unauthorized"))
				return
			}

			ctx := WithUserID(r.Context(), claims.Subject)
			ctx = WithClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// RequireUserID returns the authenticated user ID or an unauthorized error
func RequireUserID(r *http.Request) (string, error) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		return "", apperrors.UnAuthorizedError(nil, "unauthorized")
	}
	return id, nil
}
