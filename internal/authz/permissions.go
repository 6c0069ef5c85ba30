// Package authz holds the permission table and the request-level authorization
// guard. The role → permission mapping is fixed at compile time; there is no
// runtime configuration surface.
package authz

import (
	"merchant-docs/backend/internal/user/domain"
)

// The closed permission universe. Every capability an access token can carry
// is one of these strings.
const (
	PermMerchantRead  = "merchant:read"
	PermMerchantWrite = "merchant:write"
	PermUserManage    = "user:manage"
	PermDocUpload     = "doc:upload"
	PermDocView       = "doc:view"
	PermDocDelete     = "doc:delete"
	PermKYCVerify     = "kyc:verify"
	PermBillingView   = "billing:view"
	PermAuditRead     = "audit:read"
	PermSettingsWrite = "settings:write"
)

// allPermissions is the full universe in its canonical order.
var allPermissions = []string{
	PermMerchantRead,
	PermMerchantWrite,
	PermUserManage,
	PermDocUpload,
	PermDocView,
	PermDocDelete,
	PermKYCVerify,
	PermBillingView,
	PermAuditRead,
	PermSettingsWrite,
}

var rolePermissions = map[domain.Role][]string{
	domain.RoleSystemAdmin: allPermissions,
	domain.RoleMerchantAdmin: {
		PermMerchantRead,
		PermMerchantWrite,
		PermUserManage,
		PermDocUpload,
		PermDocView,
		PermDocDelete,
		PermKYCVerify,
		PermBillingView,
		PermSettingsWrite,
	},
	domain.RoleMerchantManager: {
		PermMerchantRead,
		PermDocUpload,
		PermDocView,
		PermDocDelete,
		PermKYCVerify,
		PermBillingView,
	},
	domain.RoleMerchantUser: {
		PermMerchantRead,
		PermDocUpload,
		PermDocView,
	},
	domain.RoleReadOnly: {
		PermMerchantRead,
		PermDocView,
	},
}

// Universe returns the full permission set in canonical order.
func Universe() []string {
	out := make([]string, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// PermissionsFor maps a role to its permission strings in canonical order.
// Unknown roles map to the empty set: an unrecognized role grants nothing.
func PermissionsFor(role domain.Role) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return []string{}
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
