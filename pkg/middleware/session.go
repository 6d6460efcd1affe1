package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/pkg/response"
)

type sessionCtxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *auth.Session) context.Context {
	ctx = context.WithValue(ctx, sessionCtxKey{}, s)
	ctx = context.WithValue(ctx, logger.UserIDKey, s.Subject)
	return context.WithValue(ctx, logger.SessionKey, s.Kind)
}

// SessionFrom returns the session placed in ctx by RequireSession, or nil.
func SessionFrom(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*auth.Session)
	return s
}

// RequireSession validates the bearer token, rejects revoked sessions and,
// when kinds is non-empty, sessions of any other kind.
func RequireSession(secret string, revoker auth.Revoker, kinds ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.WriteError(w, http.StatusUnauthorized, "Missing or invalid authorization header", response.CodeUnauthorized)
				return
			}

			claims, err := auth.ParseScoped(strings.TrimPrefix(authHeader, "Bearer "), secret, auth.ScopeSession)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
				return
			}
			sess := claims.Session()

			if revoker != nil {
				revoked, err := revoker.IsRevoked(r.Context(), sess.ID)
				if err != nil {
					logger.ErrorContext(r.Context(), "Session revocation check failed", "error", err)
				} else if revoked {
					response.WriteError(w, http.StatusUnauthorized, "Session has ended", response.CodeInvalidToken)
					return
				}
			}

			if len(kinds) > 0 && !slices.Contains(kinds, sess.Kind) {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
