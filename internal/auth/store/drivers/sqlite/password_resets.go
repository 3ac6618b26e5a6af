package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
)

type passwordResetsRepo struct {
	db sqlx.ExtContext
}

type resetTokenRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *passwordResetsRepo) CreateResetToken(ctx context.Context, t domain.PasswordResetToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, email, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, domain.NormalizeEmail(t.Email), t.TokenHash, t.ExpiresAt.UTC(), t.CreatedAt.UTC(),
	)
	return mapUnique(err)
}

func (r *passwordResetsRepo) GetActiveResetToken(
	ctx context.Context,
	email, hash string,
	now time.Time,
) (domain.PasswordResetToken, error) {
	var row resetTokenRow
	err := sqlx.GetContext(ctx, r.db, &row, `
		SELECT id, email, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE email = ? AND token_hash = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`,
		domain.NormalizeEmail(email), hash, now.UTC(),
	)
	if err != nil {
		return domain.PasswordResetToken{}, mapNotFound(err)
	}
	return domain.PasswordResetToken{
		ID:        row.ID,
		Email:     row.Email,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

func (r *passwordResetsRepo) DeleteResetTokensByEmail(ctx context.Context, email string) (int64, error) {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE email = ?`, domain.NormalizeEmail(email)))
}

func (r *passwordResetsRepo) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at <= ?`, now.UTC()))
}
