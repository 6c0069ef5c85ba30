package repository

import (
	"context"
	"time"

	"merchant-docs/backend/internal/session/domain"
)

// Repository defines persistence for refresh records. All operations are
// point lookups or single-row writes; nothing scans on the hot path.
type Repository interface {
	Create(ctx context.Context, rec *domain.RefreshRecord) error
	GetByID(ctx context.Context, id string) (*domain.RefreshRecord, error)
	// Revoke marks the record revoked. No-op if the record is missing or
	// already revoked.
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeIfActive marks the record revoked only if it is not yet revoked,
	// and reports whether this call won the transition. Rotation relies on
	// this being atomic per record: of two concurrent presentations of the
	// same secret, exactly one observes true.
	RevokeIfActive(ctx context.Context, id string, at time.Time) (bool, error)
	// RevokeAllByUser revokes every record belonging to the user (chain
	// invalidation on reuse detection, password change, deactivation).
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) error
}
