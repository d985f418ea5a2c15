package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// requesterKey is the context key for the requester identity.
type requesterKey struct{}

// RequesterFromContext returns the opaque requester identity stored by
// RequireToken, or an empty string.
func RequesterFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requesterKey{}).(string); ok {
		return v
	}
	return ""
}

// RequireToken gates requests on the presence of an Authorization header.
// The token is not validated or decoded here; that is the gateway's concern.
// The bearer value is stored in the context as the opaque requester identity.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		requester := strings.TrimPrefix(token, "Bearer ")
		ctx := context.WithValue(r.Context(), requesterKey{}, requester)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
