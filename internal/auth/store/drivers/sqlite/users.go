package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
)

type usersRepo struct {
	db sqlx.ExtContext
}

type userRow struct {
	ID                string         `db:"id"`
	Email             string         `db:"email"`
	FirstName         string         `db:"first_name"`
	LastName          string         `db:"last_name"`
	PasswordHash      string         `db:"password_hash"`
	Provider          string         `db:"provider"`
	TwoFactorEnabled  bool           `db:"two_factor_enabled"`
	TwoFactorSecret   sql.NullString `db:"two_factor_secret"`
	PasswordChangedAt sql.NullTime   `db:"password_changed_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

const userColumns = `id, email, first_name, last_name, password_hash, provider,
	two_factor_enabled, two_factor_secret, password_changed_at, created_at, updated_at`

func (row userRow) toDomain() domain.User {
	return domain.User{
		ID:                row.ID,
		Email:             row.Email,
		FirstName:         row.FirstName,
		LastName:          row.LastName,
		PasswordHash:      row.PasswordHash,
		Provider:          domain.Provider(row.Provider),
		TwoFactorEnabled:  row.TwoFactorEnabled,
		TwoFactorSecret:   mapNullStringPtr(row.TwoFactorSecret),
		PasswordChangedAt: mapNullTimePtr(row.PasswordChangedAt),
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		domain.NormalizeEmail(email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	var secret sql.NullString
	if u.TwoFactorSecret != nil {
		secret = sql.NullString{String: *u.TwoFactorSecret, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		domain.NormalizeEmail(u.Email),
		u.FirstName,
		u.LastName,
		u.PasswordHash,
		string(u.Provider),
		u.TwoFactorEnabled,
		secret,
		mapOptionalTime(u.PasswordChangedAt),
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC(),
	)
	return mapUnique(err)
}

func (r *usersRepo) UpdatePassword(ctx context.Context, userID, hash string, changedAt time.Time) error {
	changedAt = changedAt.UTC()
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?, password_changed_at = ?, updated_at = ?
		WHERE id = ?`,
		hash, changedAt, changedAt, userID,
	))
}

func (r *usersRepo) EnableTwoFactor(ctx context.Context, userID, secret string) error {
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_enabled = 1, two_factor_secret = ?, updated_at = ?
		WHERE id = ?`,
		secret, time.Now().UTC(), userID,
	))
}

func (r *usersRepo) DisableTwoFactor(ctx context.Context, userID string) error {
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_enabled = 0, two_factor_secret = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), userID,
	))
}
