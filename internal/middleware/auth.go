package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ruangai/backend/internal/auth"
)

type contextKey string

const ctxUserIDKey contextKey = "user_id"

// RequireUser validates the Bearer session token and stores the stable user
// id in request context. Requests without a valid identity get 401; nothing
// credit-spending runs without one.
func RequireUser(authSvc auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"authentication_required"}`, http.StatusUnauthorized)
				return
			}
			userID, err := authSvc.ValidateToken(raw)
			if err != nil {
				http.Error(w, `{"error":"authentication_required"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromCtx returns the authenticated user id, or "".
func UserIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxUserIDKey).(string)
	return id
}

// WithUserID returns a context carrying the given user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
