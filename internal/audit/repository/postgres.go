package repository

import (
	"context"
	"database/sql"

	"merchant-docs/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit entry.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, merchant_id, user_id, action, resource, ip, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.MerchantID, entry.UserID, entry.Action, entry.Resource,
		entry.IP, entry.UserAgent, entry.Metadata, entry.CreatedAt,
	)
	return err
}

// ListByMerchant returns audit entries for the merchant, newest first.
func (r *PostgresRepository) ListByMerchant(ctx context.Context, merchantID string, limit, offset int32) ([]*domain.AuditLog, error) {
	q := `SELECT id, merchant_id, user_id, action, resource, ip, user_agent, metadata, created_at FROM audit_logs`
	args := []any{}
	if merchantID != "" {
		q += ` WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, merchantID, limit, offset)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.MerchantID, &e.UserID, &e.Action, &e.Resource,
			&e.IP, &e.UserAgent, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
