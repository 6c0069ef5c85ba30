package repository

import (
	"context"

	"merchant-docs/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	// ListByMerchant returns audit entries for the merchant, newest first.
	// An empty merchantID returns entries across all merchants.
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int32) ([]*domain.AuditLog, error)
}
