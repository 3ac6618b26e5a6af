package http

import (
	"net/http"
	"time"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
)

const (
	accessCookie  = authsdk.AccessTokenCookie
	refreshCookie = authsdk.RefreshTokenCookie
	stateCookie   = "oauthState"

	// RememberMeMaxAge is the lifetime of persistent session cookies.
	RememberMeMaxAge = 30 * 24 * time.Hour

	stateMaxAge = 10 * time.Minute
)

// Cookies writes the session and OAuth state cookies.
type Cookies struct {
	// Secure is set in production.
	Secure bool
}

func (c Cookies) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		ck.MaxAge = int(maxAge.Seconds())
		ck.Expires = time.Now().Add(maxAge)
	}
	return ck
}

// SetSession writes both token cookies. A zero maxAge makes them browser
// session cookies.
func (c Cookies) SetSession(w http.ResponseWriter, t domain.SessionTokens, maxAge time.Duration) {
	http.SetCookie(w, c.cookie(accessCookie, t.AccessToken, maxAge))
	if t.RefreshToken != "" {
		http.SetCookie(w, c.cookie(refreshCookie, t.RefreshToken, maxAge))
	}
}

// ClearSession expires both token cookies.
func (c Cookies) ClearSession(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}

// SetState writes the OAuth state nonce.
func (c Cookies) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, c.cookie(stateCookie, state, stateMaxAge))
}

// ClearState expires the OAuth state nonce.
func (c Cookies) ClearState(w http.ResponseWriter) {
	ck := c.cookie(stateCookie, "", 0)
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(w, ck)
}

func rememberMeAge(rememberMe bool) time.Duration {
	if rememberMe {
		return RememberMeMaxAge
	}
	return 0
}
