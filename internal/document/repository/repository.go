package repository

import (
	"context"

	"merchant-docs/backend/internal/document/domain"
)

// Repository defines persistence for document metadata.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Create(ctx context.Context, d *domain.Document) error
	// SetStatus moves the document through its upload lifecycle.
	SetStatus(ctx context.Context, id string, status domain.Status) error
	Delete(ctx context.Context, id string) error
	// ListByMerchant returns the merchant's documents, newest first.
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int32) ([]*domain.Document, error)
	// Usage aggregates count and bytes for the merchant's documents.
	Usage(ctx context.Context, merchantID string) (*domain.Usage, error)
}
