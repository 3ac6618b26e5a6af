package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestTwoFactorEnrollment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	env.twoFactor.Now = fixedClock(now)

	prov, err := env.twoFactor.Provision(ctx, alice.ID)
	require.NoError(t, err)
	require.NotEmpty(t, prov.Secret)
	require.True(t, strings.HasPrefix(prov.OTPAuthURL, "otpauth://totp/"))
	require.True(t, strings.HasPrefix(prov.QRCode, "data:image/png;base64,"))

	t.Run("provisioning does not persist", func(t *testing.T) {
		u, err := env.store.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.False(t, u.TwoFactorEnabled)
		require.Nil(t, u.TwoFactorSecret)
	})

	t.Run("wrong code keeps it disabled", func(t *testing.T) {
		err := env.twoFactor.ConfirmEnable(ctx, alice.ID, "000000", prov.Secret)
		if err == nil {
			t.Skip("random code collided with the real one")
		}
		require.ErrorIs(t, err, ErrInvalidCode)

		u, err := env.store.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.False(t, u.TwoFactorEnabled)
	})

	t.Run("valid code enables", func(t *testing.T) {
		require.NoError(t, env.twoFactor.ConfirmEnable(ctx, alice.ID, codeAt(t, prov.Secret, now), prov.Secret))

		u, err := env.store.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.True(t, u.TwoFactorEnabled)
		require.Equal(t, prov.Secret, *u.TwoFactorSecret)
	})

	t.Run("cannot enable twice", func(t *testing.T) {
		_, err := env.twoFactor.Provision(ctx, alice.ID)
		require.ErrorIs(t, err, ErrTwoFactorAlreadyEnabled)
	})

	t.Run("disable wipes the secret", func(t *testing.T) {
		require.NoError(t, env.twoFactor.Disable(ctx, alice.ID))

		u, err := env.store.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.False(t, u.TwoFactorEnabled)
		require.Nil(t, u.TwoFactorSecret)

		require.ErrorIs(t, env.twoFactor.Disable(ctx, alice.ID), ErrTwoFactorNotEnabled)
	})
}

func TestTwoFactorLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")

	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	env.twoFactor.Now = fixedClock(now)

	prov, err := env.twoFactor.Provision(ctx, alice.ID)
	require.NoError(t, err)
	require.NoError(t, env.twoFactor.ConfirmEnable(ctx, alice.ID, codeAt(t, prov.Secret, now), prov.Secret))

	login := func(t *testing.T) string {
		t.Helper()
		res, err := env.login.Login(ctx, "alice@example.com", testPassword, Client{})
		require.NoError(t, err)
		require.True(t, res.RequiresTwoFactor())
		require.Nil(t, res.Tokens)

		claims, err := env.tokens.Verify(jwtx.KindTwoFactor, res.TempToken)
		require.NoError(t, err)
		require.Equal(t, alice.ID, claims.Subject)
		require.Empty(t, claims.SID)
		return res.TempToken
	}

	t.Run("temp token is not an access token", func(t *testing.T) {
		temp := login(t)
		_, err := env.tokens.Verify(jwtx.KindAccess, temp)
		require.Error(t, err)
	})

	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		t.Run("accepts code at "+offset.String(), func(t *testing.T) {
			res, err := env.twoFactor.VerifyDuringLogin(ctx, login(t), codeAt(t, prov.Secret, now.Add(offset)), Client{})
			require.NoError(t, err)
			require.NotNil(t, res.Tokens)
			require.NoError(t, env.sessions.CheckSession(ctx, res.Tokens.Session.ID, alice.ID))
		})
	}

	for _, offset := range []time.Duration{-60 * time.Second, 60 * time.Second} {
		t.Run("rejects code at "+offset.String(), func(t *testing.T) {
			code := codeAt(t, prov.Secret, now.Add(offset))
			for _, near := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
				if code == codeAt(t, prov.Secret, now.Add(near)) {
					t.Skip("codes collided across windows")
				}
			}
			_, err := env.twoFactor.VerifyDuringLogin(ctx, login(t), code, Client{})
			require.ErrorIs(t, err, ErrInvalidCode)
		})
	}

	t.Run("bad temp token", func(t *testing.T) {
		_, err := env.twoFactor.VerifyDuringLogin(ctx, "garbage", codeAt(t, prov.Secret, now), Client{})
		require.ErrorIs(t, err, ErrInvalidTempToken)
	})

	t.Run("access token cannot stand in for temp token", func(t *testing.T) {
		require.NoError(t, env.twoFactor.Disable(ctx, alice.ID))
		tokens := env.loginSession(t, "alice@example.com")

		_, err := env.twoFactor.VerifyDuringLogin(ctx, tokens.AccessToken, codeAt(t, prov.Secret, now), Client{})
		require.ErrorIs(t, err, ErrInvalidTempToken)
	})
}
