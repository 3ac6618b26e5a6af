package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RefreshState is the client's view of its access token.
type RefreshState int

const (
	// StateValidAccess means the current access token has not been rejected.
	StateValidAccess RefreshState = iota
	// StateExpiredAccess means a request observed TOKEN_EXPIRED and no refresh
	// has started yet.
	StateExpiredAccess
	// StateRefreshInFlight means one refresh call is running and other callers
	// are waiting on it.
	StateRefreshInFlight
	// StateRefreshSucceeded means the last refresh produced the current token.
	StateRefreshSucceeded
	// StateRefreshFailed is terminal until SetToken is called after a new login.
	StateRefreshFailed
)

func (s RefreshState) String() string {
	switch s {
	case StateValidAccess:
		return "valid_access"
	case StateExpiredAccess:
		return "expired_access"
	case StateRefreshInFlight:
		return "refresh_in_flight"
	case StateRefreshSucceeded:
		return "refresh_succeeded"
	case StateRefreshFailed:
		return "refresh_failed"
	default:
		return fmt.Sprintf("RefreshState(%d)", int(s))
	}
}

// ErrRefreshFailed wraps the cause of a failed refresh. Every waiter of that
// refresh receives it, and so does every later caller until SetToken.
var ErrRefreshFailed = errors.New("authsdk: token refresh failed")

// RefreshFunc exchanges the refresh credential for a new access token.
type RefreshFunc func(ctx context.Context) (string, error)

// DefaultRefreshTimeout bounds a single refresh call.
const DefaultRefreshTimeout = 10 * time.Second

// RefreshCoordinator makes sure only one refresh round-trip happens per
// access token expiry, however many requests observe it.
//
// Callers that see TOKEN_EXPIRED call AwaitFreshToken with the token they
// used. The first one starts the refresh; the rest wait for it. Everyone gets
// the same new token or the same error.
type RefreshCoordinator struct {
	refresh RefreshFunc

	// Timeout bounds the refresh call. A timeout counts as a failure.
	Timeout time.Duration

	// OnFailure, when set, is called once per failed refresh, e.g. to send the
	// user back to the login page.
	OnFailure func(error)

	mu     sync.Mutex
	state  RefreshState
	token  string
	err    error
	flight *flight
}

type flight struct {
	done  chan struct{}
	token string
	err   error
}

// NewRefreshCoordinator returns a coordinator in StateValidAccess with no
// token.
func NewRefreshCoordinator(fn RefreshFunc) *RefreshCoordinator {
	return &RefreshCoordinator{refresh: fn, Timeout: DefaultRefreshTimeout}
}

// State returns the current state.
func (c *RefreshCoordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the current access token, empty when none is known.
func (c *RefreshCoordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken installs a token obtained from a login and clears a failed state.
// A refresh in flight keeps running; its waiters still get its result.
func (c *RefreshCoordinator) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.err = nil
	if c.state != StateRefreshInFlight {
		c.state = StateValidAccess
	}
}

// AwaitFreshToken returns an access token newer than stale. If another caller
// already replaced stale, its token is returned without a new refresh. If a
// refresh is in flight, the call waits for it. Otherwise this call starts one.
//
// The refresh runs detached from ctx so that one caller giving up does not
// fail the others; ctx only bounds how long this caller waits.
func (c *RefreshCoordinator) AwaitFreshToken(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	switch {
	case c.state == StateRefreshFailed:
		err := c.err
		c.mu.Unlock()
		return "", err
	case c.state == StateRefreshInFlight:
		// join below
	case c.token != "" && c.token != stale:
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	default:
		c.state = StateExpiredAccess
		c.start(ctx)
	}
	f := c.flight
	c.mu.Unlock()

	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// start launches the refresh. c.mu must be held.
func (c *RefreshCoordinator) start(ctx context.Context) {
	f := &flight{done: make(chan struct{})}
	c.flight = f
	c.state = StateRefreshInFlight

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	go func() {
		defer cancel()
		tok, err := c.refresh(rctx)
		if err == nil && tok == "" {
			err = errors.New("empty access token")
		}
		c.finish(f, tok, err)
	}()
}

func (c *RefreshCoordinator) finish(f *flight, tok string, err error) {
	c.mu.Lock()
	if err != nil {
		f.err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		c.state = StateRefreshFailed
		c.err = f.err
	} else {
		f.token = tok
		c.state = StateRefreshSucceeded
		c.token = tok
	}
	c.flight = nil
	onFailure := c.OnFailure
	c.mu.Unlock()

	close(f.done)

	if err != nil && onFailure != nil {
		onFailure(f.err)
	}
}
