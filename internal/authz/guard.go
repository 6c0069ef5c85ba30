package authz

import (
	"errors"

	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/user/domain"
)

// ErrForbidden is returned when claims lack a required permission or target a
// merchant outside their scope. Handlers map it to 403.
var ErrForbidden = errors.New("forbidden")

// IsSystemAdmin reports whether the claims carry the system admin role.
func IsSystemAdmin(claims *security.AccessClaims) bool {
	return claims != nil && claims.Role == string(domain.RoleSystemAdmin)
}

// RequirePermissions checks that every required permission is present in the
// claims. System admins short-circuit to ok. Pure and side-effect free: the
// same claims always produce the same verdict.
func RequirePermissions(claims *security.AccessClaims, required ...string) error {
	if claims == nil {
		return ErrForbidden
	}
	if IsSystemAdmin(claims) {
		return nil
	}
	for _, perm := range required {
		if !claims.HasPermission(perm) {
			return ErrForbidden
		}
	}
	return nil
}

// RequireMerchantAccess checks that the claims are scoped to exactly the
// target merchant. System admins bypass; everyone else needs strict id
// equality, with no hierarchy or wildcards.
func RequireMerchantAccess(claims *security.AccessClaims, merchantID string) error {
	if claims == nil {
		return ErrForbidden
	}
	if IsSystemAdmin(claims) {
		return nil
	}
	if claims.MerchantID == "" || claims.MerchantID != merchantID {
		return ErrForbidden
	}
	return nil
}
