package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
)

// TestSessionLifecycle logs one user in from two devices, lists the
// sessions from each side and ends them one by one.
func TestSessionLifecycle(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()

	user := registerUser(t, baseURL, "alice@example.com")

	laptop := loggedInClient(t, baseURL, "alice@example.com")
	phone := loggedInClient(t, baseURL, "alice@example.com")

	me, err := laptop.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, user.ID, me.User.ID)
	require.Equal(t, "email", me.User.Provider)
	require.NotEmpty(t, me.Session.ID)

	sessions, err := laptop.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	var current, other string
	for _, s := range sessions {
		if s.IsCurrent {
			current = s.ID
		} else {
			other = s.ID
		}
	}
	require.Equal(t, me.Session.ID, current)
	require.NotEmpty(t, other)

	t.Run("logout other device by id", func(t *testing.T) {
		require.NoError(t, laptop.Logout(ctx, authsdk.LogoutRequest{SessionID: other}))

		_, err := phone.Me(ctx)
		requireCode(t, err, authsdk.CodeSessionRevoked)

		sessions, err := laptop.Sessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.True(t, sessions[0].IsCurrent)
	})

	t.Run("logout current session", func(t *testing.T) {
		require.NoError(t, laptop.Logout(ctx, authsdk.LogoutRequest{}))
		require.Empty(t, laptop.Cookie(authsdk.AccessTokenCookie))

		_, err := laptop.Me(ctx)
		require.Error(t, err)
	})
}

func TestTerminateAllOtherSessions(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()

	registerUser(t, baseURL, "bob@example.com")
	keep := loggedInClient(t, baseURL, "bob@example.com")
	others := []*authsdk.Client{
		loggedInClient(t, baseURL, "bob@example.com"),
		loggedInClient(t, baseURL, "bob@example.com"),
	}

	require.NoError(t, keep.Logout(ctx, authsdk.LogoutRequest{TerminateAllOtherSession: true}))

	for _, c := range others {
		_, err := c.Me(ctx)
		requireCode(t, err, authsdk.CodeSessionRevoked)
	}

	sessions, err := keep.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].IsCurrent)
}

func TestLoginFailures(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()

	registerUser(t, baseURL, "carol@example.com")

	tests := []struct {
		name  string
		email string
		pass  string
		code  string
	}{
		{"unknown email", "nobody@example.com", testPassword, authsdk.CodeNotFound},
		{"wrong password", "carol@example.com", "not-the-password", authsdk.CodeInvalidCredentials},
		{"missing password", "carol@example.com", "", authsdk.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClient(t, baseURL).Login(ctx, authsdk.LoginRequest{Email: tt.email, Password: tt.pass})
			requireCode(t, err, tt.code)
		})
	}

	t.Run("duplicate registration", func(t *testing.T) {
		_, err := newClient(t, baseURL).Register(ctx, authsdk.RegisterRequest{
			FirstName: "Carol",
			LastName:  "Again",
			Email:     "carol@example.com",
			Password:  testPassword,
		})
		requireCode(t, err, authsdk.CodeConflict)
	})
}
