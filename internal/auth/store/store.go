package store

import (
	"context"
	"errors"
	"time"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict reports a compare-and-swap that lost to a concurrent write.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers implement this
// and expose sub-repositories so transactional code cannot accidentally reach
// for the non-transactional handle.
type Store interface {
	Users() Users
	Sessions() Sessions
	PasswordResets() PasswordResets

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Code inside fn
	// must only use tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up by normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists on a duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePassword sets the digest and password_changed_at.
	UpdatePassword(ctx context.Context, userID, hash string, changedAt time.Time) error

	// EnableTwoFactor stores the secret and sets the flag in one statement.
	EnableTwoFactor(ctx context.Context, userID, secret string) error

	// DisableTwoFactor clears the flag and wipes the secret.
	DisableTwoFactor(ctx context.Context, userID string) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// ListSessionsByUser returns the user's sessions newest first.
	ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error)

	// SetRefreshTokenHash stores the first refresh token fingerprint of a
	// freshly inserted session.
	SetRefreshTokenHash(ctx context.Context, id, hash string) error

	// RotateRefreshTokenHash replaces oldHash with newHash only if oldHash is
	// still current. Returns ErrNotFound if the session is gone and
	// ErrConflict if another rotation already replaced oldHash.
	RotateRefreshTokenHash(ctx context.Context, id, oldHash, newHash string, seenAt time.Time) error

	// TouchSession bumps last_seen_at.
	TouchSession(ctx context.Context, id string, seenAt time.Time) error

	// DeleteSessionForUser removes one session only if userID owns it.
	// Returns ErrNotFound otherwise.
	DeleteSessionForUser(ctx context.Context, id, userID string) error

	// DeleteUserSessionsExcept removes every session of userID but keepID.
	DeleteUserSessionsExcept(ctx context.Context, userID, keepID string) (int64, error)

	// DeleteUserSessions removes every session of userID.
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)

	// DeleteIdleSessions removes sessions not seen since before.
	DeleteIdleSessions(ctx context.Context, before time.Time) (int64, error)
}

type PasswordResets interface {
	CreateResetToken(ctx context.Context, t domain.PasswordResetToken) error

	// GetActiveResetToken finds a token for (email, hash) expiring after now.
	GetActiveResetToken(ctx context.Context, email, hash string, now time.Time) (domain.PasswordResetToken, error)

	// DeleteResetTokensByEmail purges every outstanding token for email.
	DeleteResetTokensByEmail(ctx context.Context, email string) (int64, error)

	// DeleteExpiredResetTokens is housekeeping.
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
