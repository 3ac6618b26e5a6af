package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
)

func TestChangePassword(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()

	registerUser(t, baseURL, "ivan@example.com")
	c := loggedInClient(t, baseURL, "ivan@example.com")
	other := loggedInClient(t, baseURL, "ivan@example.com")

	err := c.ChangePassword(ctx, authsdk.ChangePasswordRequest{Password: "not-it", NewPassword: "brand-new-secret"})
	requireCode(t, err, authsdk.CodeInvalidCredentials)

	require.NoError(t, c.ChangePassword(ctx, authsdk.ChangePasswordRequest{
		Password:    testPassword,
		NewPassword: "brand-new-secret",
	}))

	// Every session ends, the one that made the change included.
	for _, cl := range []*authsdk.Client{c, other} {
		_, err := cl.Me(ctx)
		require.Error(t, err)
	}

	_, err = newClient(t, baseURL).Login(ctx, authsdk.LoginRequest{Email: "ivan@example.com", Password: testPassword})
	requireCode(t, err, authsdk.CodeInvalidCredentials)

	_, err = newClient(t, baseURL).Login(ctx, authsdk.LoginRequest{Email: "ivan@example.com", Password: "brand-new-secret"})
	require.NoError(t, err)
}

func TestForgotPassword_DoesNotRevealAccounts(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()

	registerUser(t, baseURL, "judy@example.com")
	c := newClient(t, baseURL)

	require.NoError(t, c.ForgotPassword(ctx, "judy@example.com"))
	require.NoError(t, c.ForgotPassword(ctx, "nobody@example.com"))
	requireCode(t, c.ForgotPassword(ctx, "not-an-email"), authsdk.CodeValidation)

	err := c.ResetPassword(ctx, authsdk.ResetPasswordRequest{
		Email:    "judy@example.com",
		Token:    "guessed-token",
		Password: "brand-new-secret",
	})
	requireCode(t, err, authsdk.CodeInvalidOrExpiredToken)
}
