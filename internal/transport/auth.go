package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type clientKey struct{}

// ClientResolver resolves the client a bearer token was issued to.
type ClientResolver interface {
	ResolveClient(ctx context.Context, token string) (string, error)
}

// ClientFromContext returns the authenticated client ID, if present.
func ClientFromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(clientKey{}).(string)
	return clientID, ok
}

// WithClient stores clientID in ctx.
func WithClient(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey{}, clientID)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver ClientResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			clientID, err := resolver.ResolveClient(r.Context(), token)
			if err != nil || clientID == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), clientID)))
		})
	}
}
