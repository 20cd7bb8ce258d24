package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/cadence-mailer/internal/pkg/httputil"
)

// UserHeader carries the caller's identity. Authentication happens in
// front of this service.
const UserHeader = "X-User-ID"

// UserContextKey is the key for storing user context
type UserContextKey struct{}

// UserContext holds the identity extracted from the request.
type UserContext struct {
	ID string
}

// GetUserFromContext returns the user set by RequireUser.
func GetUserFromContext(ctx context.Context) (*UserContext, bool) {
	u, ok := ctx.Value(UserContextKey{}).(*UserContext)
	return u, ok && u != nil
}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey{}, u)
}

// RequireUser rejects requests without an X-User-ID header.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			httputil.Error(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &UserContext{ID: id})))
	})
}

// userID is only called behind RequireUser.
func userID(r *http.Request) string {
	if u, ok := GetUserFromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}
