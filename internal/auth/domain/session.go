package domain

import "time"

// DeviceInfo is what we know about the browser behind a session.
type DeviceInfo struct {
	Browser    string // "Chrome 126.0", "Unknown"
	OS         string // "Mac OS X 10.15", "Unknown"
	DeviceType string // "Desktop", "Mobile", "Tablet", "Bot"
	IPAddress  string
	Location   string // "City, Country" or "Unknown"
}

// Session is one authenticated device. Tokens name the session id, so
// deleting the row revokes them.
type Session struct {
	ID     string
	UserID string

	// RefreshTokenHash is the fingerprint of the session's current refresh
	// token. Empty only between insert and the first token mint.
	RefreshTokenHash string

	UserAgent string
	Device    DeviceInfo

	CreatedAt  time.Time
	LastSeenAt time.Time
}

// SessionSummary is a session as listed to its owner.
type SessionSummary struct {
	Session
	IsCurrent bool
}

// SessionTokens is what a successful login or refresh hands back to the
// HTTP layer for cookies.
type SessionTokens struct {
	Session          Session
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
