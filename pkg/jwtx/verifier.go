package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrWeakSecret  = errors.New("jwtx: secret too short")
	ErrSharedKey   = errors.New("jwtx: session and two-factor secrets must differ")
	ErrUnknownKind = errors.New("jwtx: unknown token kind")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrWrongKind    = errors.New("jwtx: wrong token kind")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// IsExpired reports whether err means the token was authentic but past its
// expiry. Every other verification failure is terminal for the caller.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

// HS256Verifier validates tokens of one kind signed with a shared secret.
type HS256Verifier struct {
	secret []byte
	kind   Kind
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifierHS256 creates a verifier that only accepts tokens of the given
// kind and issuer.
func NewVerifierHS256(secret []byte, kind Kind, issuer string) *HS256Verifier {
	return &HS256Verifier{
		secret: secret,
		kind:   kind,
		issuer: issuer,
		now:    time.Now,
	}
}

// Verify checks the signature first and the claims second, so a tampered
// token never reports ErrExpired.
func (v *HS256Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSig, err)
		default:
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if err := claims.ValidateKind(v.kind); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidClaim
	}
	if v.kind != KindTwoFactor && claims.SID == "" {
		return Claims{}, ErrInvalidClaim
	}
	if err := claims.ValidateExpiryAt(v.now().UTC(), v.leeway); err != nil {
		return Claims{}, err
	}

	return claims, nil
}
