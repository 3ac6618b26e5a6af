package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes per token kind.
const (
	DefaultAccessTokenTTL    = 15 * time.Minute
	DefaultRefreshTokenTTL   = 7 * 24 * time.Hour
	DefaultTwoFactorTokenTTL = 5 * time.Minute
)

// Kind separates the token classes. It travels in the "typ" claim so a token
// minted for one purpose is never accepted for another, even when two kinds
// share a secret.
type Kind string

const (
	KindAccess    Kind = "access"
	KindRefresh   Kind = "refresh"
	KindTwoFactor Kind = "2fa"
)

func (k Kind) String() string { return string(k) }

// Claims is the claim set for every token kind. Subject is the user id.
//
//   - access:  sub, email, sid
//   - refresh: sub, sid
//   - 2fa:     sub only, no session exists yet
type Claims struct {
	jwt.RegisteredClaims

	Kind Kind `json:"typ"`

	Email string `json:"email,omitempty"`

	// Session ID. The token is only honoured while this session row exists.
	SID string `json:"sid,omitempty"`
}

// NewAccessClaims builds claims for an access token bound to a session.
func NewAccessClaims(userID, email, sid string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Kind:             KindAccess,
		Email:            email,
		SID:              sid,
	}
}

// NewRefreshClaims builds claims for a refresh token bound to a session.
func NewRefreshClaims(userID, sid string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Kind:             KindRefresh,
		SID:              sid,
	}
}

// NewTwoFactorClaims builds claims for the temporary token that bridges a
// password check to the second factor.
func NewTwoFactorClaims(userID string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Kind:             KindTwoFactor,
	}
}

// stamp fills the registered time claims, issuer and jti.
func (c *Claims) stamp(issuer string, now time.Time, ttl time.Duration) {
	c.Issuer = issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	c.ID = NewJTI()
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. Two
// tokens minted in the same second for the same session still differ.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateKind checks the "typ" claim.
func (c *Claims) ValidateKind(expected Kind) error {
	if c.Kind != expected {
		return ErrWrongKind
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryAt(time.Now().UTC(), 0)
}

// ValidateExpiryAt checks exp and nbf against now, allowing leeway for clock
// skew in both directions.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
