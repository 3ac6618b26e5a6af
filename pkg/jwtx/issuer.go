package jwtx

import (
	"bytes"
	"fmt"
	"time"
)

// IssuerConfig configures an Issuer. SessionSecret signs access and refresh
// tokens; TwoFactorSecret signs only the temporary 2FA bridge token, so the
// two can be rotated independently.
type IssuerConfig struct {
	Issuer          string
	SessionSecret   []byte
	TwoFactorSecret []byte

	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	TwoFactorTTL time.Duration

	// Leeway tolerates clock skew between instances when checking exp/nbf.
	Leeway time.Duration

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Issuer mints and verifies the three token kinds.
type Issuer struct {
	issuer    string
	ttl       map[Kind]time.Duration
	signers   map[Kind]Signer
	verifiers map[Kind]*HS256Verifier
	now       func() time.Time
}

// NewIssuer validates the secrets and builds a signer/verifier pair per kind.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if bytes.Equal(cfg.SessionSecret, cfg.TwoFactorSecret) {
		return nil, ErrSharedKey
	}

	session, err := NewSignerHS256(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("session secret: %w", err)
	}
	twoFactor, err := NewSignerHS256(cfg.TwoFactorSecret)
	if err != nil {
		return nil, fmt.Errorf("two-factor secret: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	i := &Issuer{
		issuer: cfg.Issuer,
		ttl: map[Kind]time.Duration{
			KindAccess:    orDefault(cfg.AccessTTL, DefaultAccessTokenTTL),
			KindRefresh:   orDefault(cfg.RefreshTTL, DefaultRefreshTokenTTL),
			KindTwoFactor: orDefault(cfg.TwoFactorTTL, DefaultTwoFactorTokenTTL),
		},
		signers: map[Kind]Signer{
			KindAccess:    session,
			KindRefresh:   session,
			KindTwoFactor: twoFactor,
		},
		verifiers: make(map[Kind]*HS256Verifier, 3),
		now:       now,
	}

	for kind, secret := range map[Kind][]byte{
		KindAccess:    cfg.SessionSecret,
		KindRefresh:   cfg.SessionSecret,
		KindTwoFactor: cfg.TwoFactorSecret,
	} {
		v := NewVerifierHS256(secret, kind, cfg.Issuer)
		v.leeway = cfg.Leeway
		v.now = now
		i.verifiers[kind] = v
	}

	return i, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// TTL returns the lifetime configured for kind.
func (i *Issuer) TTL(kind Kind) time.Duration { return i.ttl[kind] }

// Issue signs claims as the given kind, valid for ttl from now. A zero ttl
// uses the configured lifetime for the kind.
func (i *Issuer) Issue(kind Kind, c Claims, ttl time.Duration) (string, error) {
	signer, ok := i.signers[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if ttl <= 0 {
		ttl = i.ttl[kind]
	}
	c.Kind = kind
	c.stamp(i.issuer, i.now().UTC(), ttl)
	return signer.Sign(c)
}

// Verify checks a token of the given kind. The error is ErrExpired only for
// authentic, correctly-typed tokens past their expiry.
func (i *Issuer) Verify(kind Kind, token string) (Claims, error) {
	v, ok := i.verifiers[kind]
	if !ok {
		return Claims{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return v.Verify(token)
}

// Verifier exposes the verifier for a single kind, e.g. for middleware.
func (i *Issuer) Verifier(kind Kind) Verifier {
	return i.verifiers[kind]
}

// TokenPair is the access/refresh pair minted for a session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IssuePair mints an access and refresh token naming the same session.
func (i *Issuer) IssuePair(userID, email, sid string) (TokenPair, error) {
	now := i.now().UTC()

	access, err := i.Issue(KindAccess, NewAccessClaims(userID, email, sid), 0)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.Issue(KindRefresh, NewRefreshClaims(userID, sid), 0)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(i.ttl[KindAccess]),
		RefreshExpiresAt: now.Add(i.ttl[KindRefresh]),
	}, nil
}
