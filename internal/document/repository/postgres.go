package repository

import (
	"context"
	"database/sql"
	"errors"

	"merchant-docs/backend/internal/document/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a document repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const documentColumns = `id, merchant_id, name, category, object_key, content_type, size_bytes, status, uploaded_by, created_at`

// GetByID returns the document for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// Create persists the document metadata. The document must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, merchant_id, name, category, object_key, content_type, size_bytes, status, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.MerchantID, d.Name, d.Category, d.ObjectKey,
		d.ContentType, d.SizeBytes, string(d.Status), d.UploadedBy, d.CreatedAt,
	)
	return err
}

// SetStatus moves the document through its upload lifecycle.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

// Delete removes the metadata row. The stored object is cleaned up out of band.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// ListByMerchant returns the merchant's documents, newest first.
func (r *PostgresRepository) ListByMerchant(ctx context.Context, merchantID string, limit, offset int32) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		merchantID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Usage aggregates count and bytes for the merchant's documents.
func (r *PostgresRepository) Usage(ctx context.Context, merchantID string) (*domain.Usage, error) {
	u := &domain.Usage{MerchantID: merchantID}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM documents WHERE merchant_id = $1`,
		merchantID,
	).Scan(&u.DocumentCount, &u.TotalBytes)
	if err != nil {
		return nil, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*domain.Document, error) {
	var d domain.Document
	var status string
	if err := s.Scan(&d.ID, &d.MerchantID, &d.Name, &d.Category, &d.ObjectKey,
		&d.ContentType, &d.SizeBytes, &status, &d.UploadedBy, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Status = domain.Status(status)
	return &d, nil
}
