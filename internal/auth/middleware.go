package auth

import (
	"context"
	"net/http"
	"strings"

	"courier/internal/models"
	"courier/internal/web"
)

type contextKey string

const identityKey contextKey = "auth.identity"

// Identity is the resolved caller placed in the request context by Middleware.
type Identity struct {
	User    *models.User
	Session *models.Session
}

// BearerToken extracts the bearer value from an Authorization header.
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware authenticates the request through the Gate and injects the
// resolved identity into the context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, sess, err := g.Authenticate(r.Context(), BearerToken(r))
		if err != nil {
			web.Unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, &Identity{User: user, Session: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}
