package authz

import (
	"errors"
	"net/http"

	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/server/httpjson"
	"merchant-docs/backend/internal/server/middleware"
)

// GuardRequest authenticates the request and enforces the required
// permissions, plus merchant scoping when merchantID is non-empty. On failure
// it writes the error response and returns ok=false.
func GuardRequest(w http.ResponseWriter, r *http.Request, merchantID string, perms ...string) (*security.AccessClaims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return nil, false
	}
	if err := RequirePermissions(claims, perms...); err != nil {
		writeGuardError(w, err)
		return nil, false
	}
	if merchantID != "" {
		if err := RequireMerchantAccess(claims, merchantID); err != nil {
			writeGuardError(w, err)
			return nil, false
		}
	}
	return claims, true
}

func writeGuardError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrForbidden) {
		httpjson.Error(w, http.StatusForbidden, "forbidden")
		return
	}
	httpjson.Error(w, http.StatusInternalServerError, "internal error")
}
