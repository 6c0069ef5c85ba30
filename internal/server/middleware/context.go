// Package middleware provides HTTP middleware: access token validation and
// client metadata extraction.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"merchant-docs/backend/internal/security"
)

type contextKey struct{ name string }

var (
	claimsKey = contextKey{"claims"}
	metaKey   = contextKey{"client_meta"}
)

// ClientMeta is the request origin recorded on sessions and audit entries.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// WithClaims returns a context carrying validated access token claims.
func WithClaims(ctx context.Context, claims *security.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the access token claims from context and true if set.
func GetClaims(ctx context.Context) (*security.AccessClaims, bool) {
	v, ok := ctx.Value(claimsKey).(*security.AccessClaims)
	return v, ok
}

// WithClientMeta returns a context carrying the client IP and user agent.
func WithClientMeta(ctx context.Context, meta ClientMeta) context.Context {
	return context.WithValue(ctx, metaKey, meta)
}

// GetClientMeta returns the client metadata from context. Missing fields are
// "unknown" so audit entries never carry empty origin columns.
func GetClientMeta(ctx context.Context) ClientMeta {
	v, ok := ctx.Value(metaKey).(ClientMeta)
	if !ok {
		return ClientMeta{IP: "unknown", UserAgent: "unknown"}
	}
	if v.IP == "" {
		v.IP = "unknown"
	}
	if v.UserAgent == "" {
		v.UserAgent = "unknown"
	}
	return v
}

// ClientMetaMiddleware records the client IP and user agent in the request
// context for every request.
func ClientMetaMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := ClientMeta{IP: ClientIP(r), UserAgent: strings.TrimSpace(r.UserAgent())}
		next.ServeHTTP(w, r.WithContext(WithClientMeta(r.Context(), meta)))
	})
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP, or the
// connection's remote address, or "unknown".
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
