package repository

import (
	"context"

	"merchant-docs/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	// SetTOTPSecret persists the enrolled two-factor secret for the user.
	SetTOTPSecret(ctx context.Context, userID, secret string) error
	// SetActive flips the soft-deactivation flag.
	SetActive(ctx context.Context, userID string, active bool) error
	// List returns users, optionally filtered by merchant, newest first.
	List(ctx context.Context, merchantID string, limit, offset int32) ([]*domain.User, error)
}
