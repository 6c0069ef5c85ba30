package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merchant-docs/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, password_digest, role, merchant_id, is_active, totp_secret, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_digest, role, merchant_id, is_active, totp_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.Name, u.PasswordDigest, string(u.Role),
		nullString(u.MerchantID), u.IsActive, nullString(u.TOTPSecret),
		u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// Update rewrites the mutable fields of an existing user row.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, password_digest = $3, role = $4, merchant_id = $5,
		    is_active = $6, totp_secret = $7, updated_at = $8
		WHERE id = $1`,
		u.ID, u.Name, u.PasswordDigest, string(u.Role),
		nullString(u.MerchantID), u.IsActive, nullString(u.TOTPSecret),
		time.Now().UTC(),
	)
	return err
}

// SetTOTPSecret persists the enrolled two-factor secret for the user.
func (r *PostgresRepository) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = $2, updated_at = $3 WHERE id = $1`,
		userID, nullString(secret), time.Now().UTC(),
	)
	return err
}

// SetActive flips the soft-deactivation flag.
func (r *PostgresRepository) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`,
		userID, active, time.Now().UTC(),
	)
	return err
}

// List returns users, optionally filtered by merchant, newest first.
func (r *PostgresRepository) List(ctx context.Context, merchantID string, limit, offset int32) ([]*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if merchantID != "" {
		q += ` WHERE merchant_id = $1`
		args = append(args, merchantID)
	}
	q += ` ORDER BY created_at DESC`
	if merchantID != "" {
		q += ` LIMIT $2 OFFSET $3`
	} else {
		q += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*domain.User, error) {
	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func scanUserRow(s rowScanner) (*domain.User, error) {
	var u domain.User
	var role string
	var merchantID, totpSecret sql.NullString
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordDigest, &role,
		&merchantID, &u.IsActive, &totpSecret, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.MerchantID = merchantID.String
	u.TOTPSecret = totpSecret.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
