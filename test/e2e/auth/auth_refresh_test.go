package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/pkg/authsdk"
)

// shortAccess makes access tokens expire quickly enough to test refresh.
var shortAccess = map[string]string{"JWT_ACCESS_EXPIRY": "2s"}

func TestRefresh_Explicit(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()

	registerUser(t, baseURL, "dave@example.com")
	c := loggedInClient(t, baseURL, "dave@example.com")
	oldRefresh := c.Cookie(authsdk.RefreshTokenCookie)

	access, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.Equal(t, access, c.Cookie(authsdk.AccessTokenCookie))
	require.NotEqual(t, oldRefresh, c.Cookie(authsdk.RefreshTokenCookie), "refresh token rotates")

	_, err = c.Me(ctx)
	require.NoError(t, err)
}

// TestRefresh_ConcurrentExpiry fires several requests after the access token
// has expired. The client must refresh once and every request must succeed.
func TestRefresh_ConcurrentExpiry(t *testing.T) {
	baseURL := setupAuthContainer(t, shortAccess)
	ctx := t.Context()

	registerUser(t, baseURL, "erin@example.com")
	c := loggedInClient(t, baseURL, "erin@example.com")

	time.Sleep(3 * time.Second)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Me(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, authsdk.StateRefreshSucceeded, c.Refresher.State())

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1, "refresh must not open new sessions")
}

// TestRefresh_RevokedSession checks that a refresh for a terminated session
// fails for every waiting request and stays failed.
func TestRefresh_RevokedSession(t *testing.T) {
	baseURL := setupAuthContainer(t, shortAccess)
	ctx := t.Context()

	registerUser(t, baseURL, "frank@example.com")
	victim := loggedInClient(t, baseURL, "frank@example.com")
	admin := loggedInClient(t, baseURL, "frank@example.com")

	require.NoError(t, admin.Logout(ctx, authsdk.LogoutRequest{TerminateAllOtherSession: true}))
	time.Sleep(3 * time.Second)

	_, err := victim.Me(ctx)
	require.ErrorIs(t, err, authsdk.ErrRefreshFailed)
	require.Equal(t, authsdk.StateRefreshFailed, victim.Refresher.State())

	_, err = victim.Sessions(ctx)
	require.ErrorIs(t, err, authsdk.ErrRefreshFailed)
}
