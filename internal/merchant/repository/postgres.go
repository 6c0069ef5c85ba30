package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merchant-docs/backend/internal/merchant/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a merchant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const merchantColumns = `id, name, legal_name, kyc_status, created_at, updated_at`

// GetByID returns the merchant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id)
	m, err := scanMerchant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// Create persists the merchant. The merchant must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Merchant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO merchants (id, name, legal_name, kyc_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Name, m.LegalName, string(m.KYCStatus), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

// Update rewrites the mutable profile fields.
func (r *PostgresRepository) Update(ctx context.Context, m *domain.Merchant) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE merchants SET name = $2, legal_name = $3, updated_at = $4 WHERE id = $1`,
		m.ID, m.Name, m.LegalName, time.Now().UTC(),
	)
	return err
}

// SetKYCStatus records the verification outcome.
func (r *PostgresRepository) SetKYCStatus(ctx context.Context, id string, status domain.KYCStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE merchants SET kyc_status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	return err
}

// List returns merchants, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int32) ([]*domain.Merchant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+merchantColumns+` FROM merchants ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Merchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMerchant(s rowScanner) (*domain.Merchant, error) {
	var m domain.Merchant
	var status string
	if err := s.Scan(&m.ID, &m.Name, &m.LegalName, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.KYCStatus = domain.KYCStatus(status)
	return &m, nil
}
