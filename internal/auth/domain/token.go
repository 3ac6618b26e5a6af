package domain

import "time"

// PasswordResetToken is a pending reset. Only the fingerprint of the emailed
// token is stored.
type PasswordResetToken struct {
	ID        string
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
