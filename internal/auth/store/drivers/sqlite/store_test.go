package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
	"github.com/Dhairyash-1/auth-system/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(MemoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedUser(t *testing.T, s *Store, email string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		FirstName:    "Alice",
		LastName:     "Smith",
		PasswordHash: "argon2id$dummy",
		Provider:     domain.ProviderEmail,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func seedSession(t *testing.T, s *Store, userID string, createdAt time.Time) domain.Session {
	t.Helper()

	sess := domain.Session{
		ID:               idx.NewAt(createdAt).String(),
		UserID:           userID,
		RefreshTokenHash: "hash-" + createdAt.Format(time.RFC3339Nano),
		UserAgent:        "test-agent",
		Device:           domain.DeviceInfo{Browser: "Chrome 126", OS: "Linux", DeviceType: "Desktop", Location: "Unknown"},
		CreatedAt:        createdAt,
		LastSeenAt:       createdAt,
	}
	require.NoError(t, s.Sessions().CreateSession(context.Background(), sess))
	return sess
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("email is normalized and unique", func(t *testing.T) {
		u := seedUser(t, s, "  Alice@Example.com ")

		got, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, domain.ProviderEmail, got.Provider)
		require.False(t, got.TwoFactorEnabled)
		require.Nil(t, got.TwoFactorSecret)
		require.Nil(t, got.PasswordChangedAt)

		dup := u
		dup.ID = idx.New().String()
		dup.Email = "ALICE@example.com"
		err = s.Users().CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("two factor enable and disable", func(t *testing.T) {
		u := seedUser(t, s, "bob@example.com")

		require.NoError(t, s.Users().EnableTwoFactor(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.TwoFactorEnabled)
		require.NotNil(t, got.TwoFactorSecret)
		require.Equal(t, "JBSWY3DPEHPK3PXP", *got.TwoFactorSecret)

		require.NoError(t, s.Users().DisableTwoFactor(ctx, u.ID))
		got, err = s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.TwoFactorEnabled)
		require.Nil(t, got.TwoFactorSecret)
	})

	t.Run("update password stamps change time", func(t *testing.T) {
		u := seedUser(t, s, "carol@example.com")
		changed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

		require.NoError(t, s.Users().UpdatePassword(ctx, u.ID, "argon2id$new", changed))
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "argon2id$new", got.PasswordHash)
		require.NotNil(t, got.PasswordChangedAt)
		require.True(t, changed.Equal(*got.PasswordChangedAt))

		err = s.Users().UpdatePassword(ctx, "nope", "x", changed)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("list is newest first", func(t *testing.T) {
		first := seedSession(t, s, alice.ID, base)
		second := seedSession(t, s, alice.ID, base.Add(time.Minute))

		list, err := s.Sessions().ListSessionsByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, second.ID, list[0].ID)
		require.Equal(t, first.ID, list[1].ID)
		require.Equal(t, "Chrome 126", list[0].Device.Browser)
	})

	t.Run("delete checks ownership", func(t *testing.T) {
		sess := seedSession(t, s, bob.ID, base)

		err := s.Sessions().DeleteSessionForUser(ctx, sess.ID, alice.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.Sessions().DeleteSessionForUser(ctx, sess.ID, bob.ID))
		_, err = s.Sessions().GetSessionByID(ctx, sess.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete all except keeps one", func(t *testing.T) {
		keep := seedSession(t, s, bob.ID, base.Add(time.Hour))
		seedSession(t, s, bob.ID, base.Add(2*time.Hour))
		seedSession(t, s, bob.ID, base.Add(3*time.Hour))

		n, err := s.Sessions().DeleteUserSessionsExcept(ctx, bob.ID, keep.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		list, err := s.Sessions().ListSessionsByUser(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, keep.ID, list[0].ID)
	})

	t.Run("idle sessions are purged", func(t *testing.T) {
		carol := seedUser(t, s, "carol@example.com")
		old := seedSession(t, s, carol.ID, base.Add(-48*time.Hour))
		fresh := seedSession(t, s, carol.ID, base)

		n, err := s.Sessions().DeleteIdleSessions(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))

		_, err = s.Sessions().GetSessionByID(ctx, old.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Sessions().GetSessionByID(ctx, fresh.ID)
		require.NoError(t, err)
	})

	t.Run("sessions cascade with their user", func(t *testing.T) {
		_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, alice.ID)
		require.NoError(t, err)

		list, err := s.Sessions().ListSessionsByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Empty(t, list)
	})
}

func TestRotateRefreshTokenHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")
	sess := seedSession(t, s, u.ID, time.Now().UTC())

	t.Run("stale hash conflicts", func(t *testing.T) {
		err := s.Sessions().RotateRefreshTokenHash(ctx, sess.ID, "not-current", "next", time.Now())
		require.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("missing session is not found", func(t *testing.T) {
		err := s.Sessions().RotateRefreshTokenHash(ctx, "gone", "a", "b", time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("only one concurrent rotation wins", func(t *testing.T) {
		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Sessions().RotateRefreshTokenHash(ctx, sess.ID, sess.RefreshTokenHash,
					"next-"+idx.New().String(), time.Now())
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, store.ErrConflict)
			}(i)
		}
		wg.Wait()
		require.Equal(t, 1, wins)
	})
}

func TestPasswordResets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tok := domain.PasswordResetToken{
		ID:        idx.New().String(),
		Email:     "Alice@example.com",
		TokenHash: "fp",
		ExpiresAt: now.Add(15 * time.Minute),
		CreatedAt: now,
	}
	require.NoError(t, s.PasswordResets().CreateResetToken(ctx, tok))

	got, err := s.PasswordResets().GetActiveResetToken(ctx, "alice@example.com", "fp", now)
	require.NoError(t, err)
	require.Equal(t, tok.ID, got.ID)

	_, err = s.PasswordResets().GetActiveResetToken(ctx, "alice@example.com", "other", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.PasswordResets().GetActiveResetToken(ctx, "alice@example.com", "fp", now.Add(15*time.Minute))
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.PasswordResets().DeleteExpiredResetTokens(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().EnableTwoFactor(ctx, u.ID, "SECRET"); err != nil {
			return err
		}
		return store.ErrConflict
	})
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.TwoFactorEnabled)
}
