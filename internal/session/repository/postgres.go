package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merchant-docs/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh-record repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the record. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.RefreshRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_records (id, user_id, token_digest, expires_at, revoked_at, created_from_ip, created_from_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, rec.TokenDigest, rec.ExpiresAt,
		timeToNullTime(rec.RevokedAt), rec.CreatedFromIP, rec.CreatedFromAgent, rec.CreatedAt,
	)
	return err
}

// GetByID returns the record for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.RefreshRecord, error) {
	var rec domain.RefreshRecord
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_digest, expires_at, revoked_at, created_from_ip, created_from_agent, created_at
		FROM refresh_records WHERE id = $1`, id).
		Scan(&rec.ID, &rec.UserID, &rec.TokenDigest, &rec.ExpiresAt,
			&revokedAt, &rec.CreatedFromIP, &rec.CreatedFromAgent, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return &rec, nil
}

// Revoke marks the record revoked. No-op if missing or already revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, at,
	)
	return err
}

// RevokeIfActive is the conditional update rotation serializes on: the
// "revoked_at IS NULL" predicate plus rows-affected means only one of two
// racing refresh calls can observe true for the same record.
func (r *PostgresRepository) RevokeIfActive(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, at,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeAllByUser revokes every not-yet-revoked record belonging to the user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, at,
	)
	return err
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
