package repository

import (
	"context"

	"merchant-docs/backend/internal/merchant/domain"
)

// Repository defines persistence for merchants.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Merchant, error)
	Create(ctx context.Context, m *domain.Merchant) error
	Update(ctx context.Context, m *domain.Merchant) error
	// SetKYCStatus records the verification outcome.
	SetKYCStatus(ctx context.Context, id string, status domain.KYCStatus) error
	// List returns merchants, newest first.
	List(ctx context.Context, limit, offset int32) ([]*domain.Merchant, error)
}
