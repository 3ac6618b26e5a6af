package domain

import (
	"strings"
	"time"
)

// Provider is the authentication method an account was created with. It is
// set once and never changes.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// ParseProvider returns the provider for s, or false when unknown.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderEmail, ProviderGoogle, ProviderGitHub:
		return p, true
	default:
		return "", false
	}
}

// IsOAuth reports whether the provider is an external identity provider.
func (p Provider) IsOAuth() bool { return p == ProviderGoogle || p == ProviderGitHub }

func (p Provider) String() string { return string(p) }

type User struct {
	ID           string
	Email        string // normalized, unique
	FirstName    string
	LastName     string
	PasswordHash string // argon2 encoded, empty for OAuth accounts
	Provider     Provider

	TwoFactorEnabled bool
	TwoFactorSecret  *string // base32 TOTP secret, only set while enabled

	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NormalizeEmail trims and lowercases an address. Users are keyed by the
// normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
