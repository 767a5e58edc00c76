package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const userKey contextKey = "user"

// BearerAuthMiddleware resolves the Bearer token to a user and requires that
// user to own the current session.
func BearerAuthMiddleware(session *service.Session, tokens port.Cache[domain.User], metrics *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}
			token := parts[1]

			user, err := resolveToken(r.Context(), session, tokens, metrics, token)
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			current := session.Status().User
			if current == nil || current.ID != user.ID {
				logger.Warn("auth: token does not own the session",
					zap.String("path", r.URL.Path),
					zap.String("token_user", user.ID),
				)
				writeError(w, http.StatusUnauthorized, "token does not match the signed-in account")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveToken(ctx context.Context, session *service.Session, tokens port.Cache[domain.User], metrics *observability.Metrics, token string) (domain.User, error) {
	if tokens != nil {
		if u, ok := tokens.Get(token); ok {
			metrics.IncrCacheHit("token")
			return u, nil
		}
		metrics.IncrCacheMiss("token")
	}

	u, err := session.UserFromToken(ctx, token)
	if err != nil {
		return domain.User{}, err
	}
	if tokens != nil {
		tokens.Set(token, *u)
	}
	return *u, nil
}

// UserFromContext returns the authenticated user injected by BearerAuthMiddleware.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey).(domain.User)
	return u, ok
}
