package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
)

type sessionsRepo struct {
	db sqlx.ExtContext
}

type sessionRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	RefreshTokenHash string    `db:"refresh_token_hash"`
	UserAgent        string    `db:"user_agent"`
	Browser          string    `db:"browser"`
	OS               string    `db:"os"`
	DeviceType       string    `db:"device_type"`
	IPAddress        string    `db:"ip_address"`
	Location         string    `db:"location"`
	CreatedAt        time.Time `db:"created_at"`
	LastSeenAt       time.Time `db:"last_seen_at"`
}

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, browser, os,
	device_type, ip_address, location, created_at, last_seen_at`

func (row sessionRow) toDomain() domain.Session {
	return domain.Session{
		ID:               row.ID,
		UserID:           row.UserID,
		RefreshTokenHash: row.RefreshTokenHash,
		UserAgent:        row.UserAgent,
		Device: domain.DeviceInfo{
			Browser:    row.Browser,
			OS:         row.OS,
			DeviceType: row.DeviceType,
			IPAddress:  row.IPAddress,
			Location:   row.Location,
		},
		CreatedAt:  row.CreatedAt.UTC(),
		LastSeenAt: row.LastSeenAt.UTC(),
	}
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = s.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		s.RefreshTokenHash,
		s.UserAgent,
		s.Device.Browser,
		s.Device.OS,
		s.Device.DeviceType,
		s.Device.IPAddress,
		s.Device.Location,
		s.CreatedAt.UTC(),
		s.LastSeenAt.UTC(),
	)
	return mapUnique(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	var row sessionRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *sessionsRepo) ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	var rows []sessionRow
	err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *sessionsRepo) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash = ? WHERE id = ?`, hash, id))
}

func (r *sessionsRepo) RotateRefreshTokenHash(ctx context.Context, id, oldHash, newHash string, seenAt time.Time) error {
	n, err := affected(r.db.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token_hash = ?, last_seen_at = ?
		WHERE id = ? AND refresh_token_hash = ?`,
		newHash, seenAt.UTC(), id, oldHash,
	))
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Lost the swap: either the row is gone or another rotation won.
	var exists int
	err = sqlx.GetContext(ctx, r.db, &exists, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, seenAt time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = ? WHERE id = ?`, seenAt.UTC(), id))
}

func (r *sessionsRepo) DeleteSessionForUser(ctx context.Context, id, userID string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *sessionsRepo) DeleteUserSessionsExcept(ctx context.Context, userID, keepID string) (int64, error) {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? AND id <> ?`, userID, keepID))
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID))
}

func (r *sessionsRepo) DeleteIdleSessions(ctx context.Context, before time.Time) (int64, error) {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_seen_at < ?`, before.UTC()))
}
