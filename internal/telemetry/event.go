// Package telemetry defines the security event stream emitted by the session
// engine and its async, best-effort delivery.
package telemetry

import (
	"context"
	"time"
)

// Event types produced by the session and authorization subsystem.
const (
	EventLoginSuccess        = "login_success"
	EventLoginFailure        = "login_failure"
	EventTwoFactorRequired   = "two_factor_required"
	EventTwoFactorEnabled    = "two_factor_enabled"
	EventRefreshRotated      = "refresh_rotated"
	EventRefreshReuse        = "refresh_reuse_detected"
	EventSessionsRevoked     = "sessions_revoked"
	EventLogout              = "logout"
	EventLoginRateLimited    = "login_rate_limited"
)

// SecurityEvent is one entry on the security event stream.
type SecurityEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	MerchantID string    `json:"merchant_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventEmitter emits security events. Callers use it best-effort: log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *SecurityEvent) error
}
