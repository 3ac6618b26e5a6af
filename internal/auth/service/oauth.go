package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
	"github.com/Dhairyash-1/auth-system/pkg/idx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

// OAuthService links verified external identities to local accounts.
type OAuthService struct {
	Store    store.Store
	Sessions *SessionService
	Metrics  Metrics
	Now      func() time.Time
}

func (s *OAuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Link finds the account for id.Email or creates one bound to id.Provider.
// An existing account bound to another method fails with *WrongProviderError.
func (s *OAuthService) Link(ctx context.Context, id domain.ExternalIdentity) (domain.User, error) {
	email := domain.NormalizeEmail(id.Email)
	if email == "" {
		return domain.User{}, &ValidationError{Fields: map[string]string{"email": "provider returned no email"}}
	}
	if !id.Provider.IsOAuth() {
		return domain.User{}, fmt.Errorf("link identity: unsupported provider %q", id.Provider)
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		if u.Provider != id.Provider {
			return domain.User{}, &WrongProviderError{Provider: u.Provider}
		}
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	u = domain.User{
		ID:        idx.NewAt(now).String(),
		Email:     email,
		FirstName: sanitizeName(id.GivenName),
		LastName:  sanitizeName(id.FamilyName),
		Provider:  id.Provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent first login; use the winner's row.
			return s.Link(ctx, id)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user created from external identity", "user_id", u.ID, "provider", u.Provider)
	return u, nil
}

// Login links the identity and opens a session. OAuth logins are not gated
// by the second factor.
func (s *OAuthService) Login(ctx context.Context, id domain.ExternalIdentity, c Client) (domain.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "OAuthService.Login")
	defer span.End()

	m := metricsOrNoop(s.Metrics)

	u, err := s.Link(ctx, id)
	if err != nil {
		var wp *WrongProviderError
		if errors.As(err, &wp) {
			m.Login("wrong_provider")
		}
		return domain.LoginResult{}, err
	}

	tokens, err := s.Sessions.Create(ctx, u, c)
	if err != nil {
		return domain.LoginResult{}, err
	}
	m.Login("success")
	return domain.LoginResult{User: u, Tokens: &tokens}, nil
}
