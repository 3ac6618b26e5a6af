package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dhairyash-1/auth-system/pkg/httpx"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type sessionSet map[string]string // session id -> user id

func (s sessionSet) CheckSession(_ context.Context, sid, uid string) error {
	if owner, ok := s[sid]; !ok || owner != uid {
		return httpx.ErrSessionRevoked
	}
	return nil
}

func newTestIssuer(t *testing.T, now func() time.Time) *jwtx.Issuer {
	t.Helper()
	iss, err := jwtx.NewIssuer(jwtx.IssuerConfig{
		Issuer:          "auth-system",
		SessionSecret:   []byte("session-secret-0123456789abcdefghijklmnop"),
		TwoFactorSecret: []byte("two-factor-secret-0123456789abcdefghijklm"),
		Now:             now,
	})
	require.NoError(t, err)
	return iss
}

func TestAuthnMiddleware(t *testing.T) {
	iss := newTestIssuer(t, nil)
	sessions := sessionSet{"s-1": "u-1"}

	var failure error
	mw := httpx.AuthnMiddleware(httpx.AuthnConfig{
		Verifier:   iss.Verifier(jwtx.KindAccess),
		Sessions:   sessions,
		CookieName: "accessToken",
		Fail: func(w http.ResponseWriter, _ *http.Request, err error) {
			failure = err
			w.WriteHeader(http.StatusUnauthorized)
		},
	})

	var gotUser, gotSession string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = httpx.UserIDFrom(r.Context())
		gotSession, _ = httpx.SessionIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	pair, err := iss.IssuePair("u-1", "alice@example.com", "s-1")
	require.NoError(t, err)

	run := func(req *http.Request) int {
		failure = nil
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: pair.AccessToken})
		require.Equal(t, http.StatusOK, run(req))
		require.Equal(t, "u-1", gotUser)
		require.Equal(t, "s-1", gotSession)
	})

	t.Run("bearer header wins over stale cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "stale"})
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		require.Equal(t, http.StatusOK, run(req))
	})

	t.Run("missing token", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, run(httptest.NewRequest(http.MethodGet, "/me", nil)))
		require.ErrorIs(t, failure, httpx.ErrMissingToken)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		require.Equal(t, http.StatusUnauthorized, run(req))
		require.ErrorIs(t, failure, jwtx.ErrWrongKind)
	})

	t.Run("expired token", func(t *testing.T) {
		old := newTestIssuer(t, func() time.Time { return time.Now().Add(-time.Hour) })
		expired, err := old.IssuePair("u-1", "alice@example.com", "s-1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+expired.AccessToken)
		require.Equal(t, http.StatusUnauthorized, run(req))
		require.True(t, jwtx.IsExpired(failure))
	})

	t.Run("revoked session", func(t *testing.T) {
		delete(sessions, "s-1")
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		require.Equal(t, http.StatusUnauthorized, run(req))
		require.True(t, errors.Is(failure, httpx.ErrSessionRevoked))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"first", "second", "handler"}, order)
}
