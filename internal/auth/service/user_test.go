package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/pkg/idx"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("normalizes and hashes", func(t *testing.T) {
		u, err := env.users.Register(ctx, RegisterInput{
			FirstName: " <b>Alice</b> ",
			LastName:  "Smith",
			Email:     " Alice@Example.com",
			Password:  testPassword,
		})
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", u.Email)
		require.Equal(t, "Alice", u.FirstName)
		require.Equal(t, domain.ProviderEmail, u.Provider)
		require.NotEqual(t, testPassword, u.PasswordHash)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := env.users.Register(ctx, RegisterInput{
			FirstName: "Alice", LastName: "Again", Email: "ALICE@example.com", Password: testPassword,
		})
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing first name", RegisterInput{LastName: "S", Email: "x@example.com", Password: testPassword}, "firstName"},
		{"missing last name", RegisterInput{FirstName: "A", Email: "x@example.com", Password: testPassword}, "lastName"},
		{"bad email", RegisterInput{FirstName: "A", LastName: "S", Email: "not-an-email", Password: testPassword}, "email"},
		{"short password", RegisterInput{FirstName: "A", LastName: "S", Email: "x@example.com", Password: "short"}, "password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.users.Register(ctx, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	require.NoError(t, env.store.Users().CreateUser(ctx, domain.User{
		ID:        idx.New().String(),
		Email:     "gina@example.com",
		FirstName: "Gina",
		LastName:  "Google",
		Provider:  domain.ProviderGoogle,
	}))

	t.Run("correct password", func(t *testing.T) {
		u, err := env.users.Authenticate(ctx, " ALICE@example.com ", testPassword)
		require.NoError(t, err)
		require.Equal(t, alice.ID, u.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.users.Authenticate(ctx, "nobody@example.com", testPassword)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("wrong provider names the right one", func(t *testing.T) {
		_, err := env.users.Authenticate(ctx, "gina@example.com", testPassword)
		var wp *WrongProviderError
		require.ErrorAs(t, err, &wp)
		require.Equal(t, domain.ProviderGoogle, wp.Provider)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.users.Authenticate(ctx, "alice@example.com", "wrong-password")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestChangePasswordRevokesEverySession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	first := env.loginSession(t, "alice@example.com")
	env.loginSession(t, "alice@example.com")

	t.Run("wrong current password", func(t *testing.T) {
		err := env.users.ChangePassword(ctx, alice.ID, "nope-nope", "NewPassw0rd!")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	require.NoError(t, env.users.ChangePassword(ctx, alice.ID, testPassword, "NewPassw0rd!"))

	list, err := env.sessions.List(ctx, alice.ID, "")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = env.sessions.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	u, err := env.users.Authenticate(ctx, "alice@example.com", "NewPassw0rd!")
	require.NoError(t, err)
	require.NotNil(t, u.PasswordChangedAt)
	require.Equal(t, 2, env.metrics.count("revoked:password_change"))
}
