package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionNotFound covers both a missing session and one owned by
	// someone else, so callers cannot probe for other users' session ids.
	ErrSessionNotFound = errors.New("session not found or unauthorized")

	// ErrSessionRevoked is shared with the authn middleware so both paths
	// map to the same response.
	ErrSessionRevoked   = httpx.ErrSessionRevoked
	ErrInvalidRefresh   = errors.New("invalid refresh token")
	ErrInvalidCode      = errors.New("invalid two-factor code")
	ErrInvalidTempToken = errors.New("invalid or expired temporary token")

	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")

	// ErrRefreshSuperseded is a well formed refresh token for a live session
	// whose rotation has already moved on: a lost concurrent refresh, or a
	// replay of an older token. It matches ErrInvalidRefresh, but the session
	// and its current cookies stay valid.
	ErrRefreshSuperseded = fmt.Errorf("%w: superseded", ErrInvalidRefresh)

	ErrInvalidResetToken = errors.New("reset token invalid or expired")
	ErrPasswordLogin     = errors.New("account has no password login")
)

// WrongProviderError is returned when an account is accessed with an
// authentication method other than the one it was created with.
type WrongProviderError struct {
	Provider domain.Provider
}

func (e *WrongProviderError) Error() string {
	return fmt.Sprintf("account uses %s sign-in", e.Provider)
}

// ValidationError carries per-field problems with user input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// add records a problem for field, keeping the first one reported.
func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = reason
	}
}

// orNil returns e only if something was recorded.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
