package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"notevault-server/internal/service"
	"notevault-server/pkg/response"

	"go.uber.org/zap"
)

type contextKey string

const UserIDKey contextKey = "userID"

// SessionResolver turns a session cookie value or a bearer token into a user id.
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (string, error)
	ResolveToken(ctx context.Context, token string) (string, error)
}

// AuthMiddleware accepts the session cookie first and falls back to an
// Authorization bearer token.
func AuthMiddleware(resolver SessionResolver, cookieName string, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				userID string
				err    error
			)

			if cookie, cerr := r.Cookie(cookieName); cerr == nil && cookie.Value != "" {
				userID, err = resolver.ResolveSession(r.Context(), cookie.Value)
			} else if token, ok := bearerToken(r); ok {
				userID, err = resolver.ResolveToken(r.Context(), token)
			} else {
				err = service.ErrSessionMissing
			}

			switch {
			case err == nil:
			case errors.Is(err, service.ErrSessionMissing):
				response.Unauthorized(w, "Session expired.")
				return
			case errors.Is(err, service.ErrInvalidToken):
				response.Unauthorized(w, "Invalid token.")
				return
			default:
				logger.Errorw("Failed to resolve session", "error", err)
				response.InternalError(w, "Failed to verify session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}
