package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

var (
	ErrMissingToken   = errors.New("httpx: missing access token")
	ErrSessionRevoked = errors.New("httpx: session revoked")
)

// SessionChecker confirms that the session named by a token still exists and
// belongs to the token's user. It returns ErrSessionRevoked otherwise.
type SessionChecker interface {
	CheckSession(ctx context.Context, sessionID, userID string) error
}

// AuthnConfig configures AuthnMiddleware.
type AuthnConfig struct {
	Verifier jwtx.Verifier
	Sessions SessionChecker

	// CookieName is checked when no Authorization header is present.
	CookieName string

	// Fail writes the response for a rejected request. err is ErrMissingToken,
	// a jwtx error, ErrSessionRevoked, or a store failure.
	Fail func(w http.ResponseWriter, r *http.Request, err error)
}

// AuthnMiddleware authenticates a request from the access token cookie or a
// Bearer header, then confirms the session is still live.
func AuthnMiddleware(cfg AuthnConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := AccessToken(r, cfg.CookieName)
			if raw == "" {
				cfg.Fail(w, r, ErrMissingToken)
				return
			}

			claims, err := cfg.Verifier.Verify(raw)
			if err != nil {
				if !jwtx.IsExpired(err) {
					log.Warn("access token rejected", "err", err)
				}
				cfg.Fail(w, r, err)
				return
			}

			if err := cfg.Sessions.CheckSession(ctx, claims.SID, claims.Subject); err != nil {
				if errors.Is(err, ErrSessionRevoked) {
					log.Info("request with revoked session", "user_id", claims.Subject, "session_id", claims.SID)
				}
				cfg.Fail(w, r, err)
				return
			}

			ctx = contextWithAuth(ctx, claims)
			ctx = slogx.WithAttrs(ctx, "user_id", claims.Subject, "session_id", claims.SID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken returns the token from an Authorization Bearer header, falling
// back to the named cookie. The header wins so a client replaying a request
// with a freshly refreshed token is not shadowed by a stale cookie.
func AccessToken(r *http.Request, cookieName string) string {
	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}

	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}
