package domain

import (
	"errors"
	"time"
)

// Role is the closed set of roles a user can hold. Anything outside this enum
// resolves to zero permissions.
type Role string

const (
	RoleSystemAdmin     Role = "system_admin"
	RoleMerchantAdmin   Role = "merchant_admin"
	RoleMerchantManager Role = "merchant_manager"
	RoleMerchantUser    Role = "merchant_user"
	RoleReadOnly        Role = "read_only"
)

// ParseRole returns the Role for s and whether it is a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSystemAdmin, RoleMerchantAdmin, RoleMerchantManager, RoleMerchantUser, RoleReadOnly:
		return Role(s), true
	default:
		return "", false
	}
}

// User is the core user entity. Users are never deleted; deactivation flips
// IsActive. TOTPSecret is empty until two-factor enrollment completes.
type User struct {
	ID             string
	Email          string
	Name           string
	PasswordDigest string
	Role           Role
	MerchantID     string // empty for system admins and unassigned users
	IsActive       bool
	TOTPSecret     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordDigest == "" {
		return errors.New("password digest is required")
	}
	if _, ok := ParseRole(string(u.Role)); !ok {
		return errors.New("unknown role")
	}
	if u.Role == RoleSystemAdmin && u.MerchantID != "" {
		return errors.New("system admins are not merchant-scoped")
	}
	return nil
}

// Sanitized returns a copy safe to hand to clients: credential material is cleared.
func (u *User) Sanitized() *User {
	c := *u
	c.PasswordDigest = ""
	c.TOTPSecret = ""
	return &c
}

// TwoFactorEnabled reports whether a TOTP secret has been enrolled.
func (u *User) TwoFactorEnabled() bool { return u.TOTPSecret != "" }
