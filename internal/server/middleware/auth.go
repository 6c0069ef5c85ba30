package middleware

import (
	"net/http"
	"strings"

	"merchant-docs/backend/internal/server/httpjson"
	"merchant-docs/backend/internal/security"
)

const bearerPrefix = "bearer "

// RequireAuth returns middleware that validates the Bearer access token and
// puts its claims in the request context. Requests without a valid token get
// 401; token validation is stateless, so a revoked refresh chain does not
// invalidate access tokens already issued.
func RequireAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ExtractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
