package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var (
	sessionSecret   = []byte("session-secret-0123456789abcdefghijklmnop")
	twoFactorSecret = []byte("two-factor-secret-0123456789abcdefghijklm")
)

func newIssuer(t *testing.T, now func() time.Time) *jwtx.Issuer {
	t.Helper()
	iss, err := jwtx.NewIssuer(jwtx.IssuerConfig{
		Issuer:          "auth-system",
		SessionSecret:   sessionSecret,
		TwoFactorSecret: twoFactorSecret,
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		TwoFactorTTL:    5 * time.Minute,
		Now:             now,
	})
	require.NoError(t, err)
	return iss
}

func TestNewIssuer_Secrets(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		_, err := jwtx.NewIssuer(jwtx.IssuerConfig{
			SessionSecret:   []byte("short"),
			TwoFactorSecret: twoFactorSecret,
		})
		require.ErrorIs(t, err, jwtx.ErrWeakSecret)
	})

	t.Run("shared secret", func(t *testing.T) {
		_, err := jwtx.NewIssuer(jwtx.IssuerConfig{
			SessionSecret:   sessionSecret,
			TwoFactorSecret: sessionSecret,
		})
		require.ErrorIs(t, err, jwtx.ErrSharedKey)
	})

	t.Run("default ttls", func(t *testing.T) {
		iss, err := jwtx.NewIssuer(jwtx.IssuerConfig{
			SessionSecret:   sessionSecret,
			TwoFactorSecret: twoFactorSecret,
		})
		require.NoError(t, err)
		require.Equal(t, jwtx.DefaultAccessTokenTTL, iss.TTL(jwtx.KindAccess))
		require.Equal(t, jwtx.DefaultRefreshTokenTTL, iss.TTL(jwtx.KindRefresh))
		require.Equal(t, jwtx.DefaultTwoFactorTokenTTL, iss.TTL(jwtx.KindTwoFactor))
	})
}

func TestIssuePair_RoundTrip(t *testing.T) {
	iss := newIssuer(t, nil)

	pair, err := iss.IssuePair("user-1", "alice@example.com", "session-1")
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := iss.Verify(jwtx.KindAccess, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", access.Subject)
	require.Equal(t, "alice@example.com", access.Email)
	require.Equal(t, "session-1", access.SID)
	require.Equal(t, "auth-system", access.Issuer)

	refresh, err := iss.Verify(jwtx.KindRefresh, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "session-1", refresh.SID)
	require.Empty(t, refresh.Email)
}

func TestVerify_ExpiredIsDistinct(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	minted := newIssuer(t, func() time.Time { return past })

	token, err := minted.Issue(jwtx.KindAccess, jwtx.NewAccessClaims("user-1", "a@example.com", "session-1"), time.Minute)
	require.NoError(t, err)

	_, err = newIssuer(t, nil).Verify(jwtx.KindAccess, token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
	require.True(t, jwtx.IsExpired(err))

	t.Run("tampered expired token is invalid, not expired", func(t *testing.T) {
		tampered := token[:len(token)-4] + flip(token[len(token)-4:])
		_, err := newIssuer(t, nil).Verify(jwtx.KindAccess, tampered)
		require.Error(t, err)
		require.False(t, jwtx.IsExpired(err))
	})
}

func TestVerify_Failures(t *testing.T) {
	iss := newIssuer(t, nil)
	pair, err := iss.IssuePair("user-1", "a@example.com", "session-1")
	require.NoError(t, err)
	temp, err := iss.Issue(jwtx.KindTwoFactor, jwtx.NewTwoFactorClaims("user-1"), 0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		kind  jwtx.Kind
		token string
		want  error
	}{
		{"garbage", jwtx.KindAccess, "not-a-jwt", jwtx.ErrMalformed},
		{"refresh used as access", jwtx.KindAccess, pair.RefreshToken, jwtx.ErrWrongKind},
		{"access used as refresh", jwtx.KindRefresh, pair.AccessToken, jwtx.ErrWrongKind},
		{"temp token under session secret", jwtx.KindAccess, temp, jwtx.ErrInvalidSig},
		{"access token under two-factor secret", jwtx.KindTwoFactor, pair.AccessToken, jwtx.ErrInvalidSig},
		{"unknown kind", jwtx.Kind("id"), pair.AccessToken, jwtx.ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Verify(tt.kind, tt.token)
			require.ErrorIs(t, err, tt.want)
			require.False(t, jwtx.IsExpired(err))
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	iss := newIssuer(t, nil)

	claims := jwtx.NewAccessClaims("user-1", "a@example.com", "session-1")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	claims.Issuer = "auth-system"

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Verify(jwtx.KindAccess, none)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(sessionSecret)
	require.NoError(t, err)
	_, err = iss.Verify(jwtx.KindAccess, hs512)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestVerify_IssuerMismatch(t *testing.T) {
	other, err := jwtx.NewIssuer(jwtx.IssuerConfig{
		Issuer:          "someone-else",
		SessionSecret:   sessionSecret,
		TwoFactorSecret: twoFactorSecret,
	})
	require.NoError(t, err)

	token, err := other.Issue(jwtx.KindAccess, jwtx.NewAccessClaims("user-1", "a@example.com", "session-1"), 0)
	require.NoError(t, err)

	_, err = newIssuer(t, nil).Verify(jwtx.KindAccess, token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestVerify_MissingSession(t *testing.T) {
	iss := newIssuer(t, nil)

	token, err := iss.Issue(jwtx.KindAccess, jwtx.NewAccessClaims("user-1", "a@example.com", ""), 0)
	require.NoError(t, err)

	_, err = iss.Verify(jwtx.KindAccess, token)
	require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
}

// flip swaps characters of a base64url segment so the signature changes.
func flip(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 'A' {
			return 'B'
		}
		return 'A'
	}, s)
}
