package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hongminglow/points-ledger/internal/http/respond"
)

// AdminKeyHeader carries the operator key for admin routes.
const AdminKeyHeader = "X-Admin-Key"

type contextKey string

const userIDCtxKey contextKey = "user_id"

// TokenParser verifies a bearer token and returns the user id it names.
type TokenParser interface {
	Parse(token string) (string, error)
}

// Auth requires a valid bearer token and stores its user id in the request context.
func Auth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respond.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respond.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}
			userID, err := tokens.Parse(token)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFrom extracts the authenticated user id placed by Auth.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDCtxKey).(string)
	return id, ok && id != ""
}

// AdminKey guards operator routes with a shared key. An empty key disables them.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				respond.Error(w, http.StatusNotFound, "admin routes are disabled")
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				respond.Error(w, http.StatusUnauthorized, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
