package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

// LoginService runs a password login: credentials, then either a session or
// a temporary token when the account has a second factor.
type LoginService struct {
	Users    *UserService
	Sessions *SessionService
	Tokens   *jwtx.Issuer
	Metrics  Metrics
}

// Login verifies the credentials and opens a session, unless the account
// has two-factor enabled, in which case only a temporary token is returned.
func (s *LoginService) Login(ctx context.Context, email, password string, c Client) (domain.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "LoginService.Login")
	defer span.End()

	m := metricsOrNoop(s.Metrics)
	log := slogx.FromContext(ctx)

	u, err := s.Users.Authenticate(ctx, email, password)
	if err != nil {
		var wp *WrongProviderError
		switch {
		case errors.Is(err, ErrUserNotFound):
			m.Login("unknown_user")
		case errors.As(err, &wp):
			m.Login("wrong_provider")
		case errors.Is(err, ErrInvalidCredentials):
			m.Login("bad_password")
			log.Info("login failed", "reason", "bad_password")
		}
		return domain.LoginResult{}, err
	}
	span.SetAttributes(attribute.Bool("user.two_factor", u.TwoFactorEnabled))

	if u.TwoFactorEnabled {
		temp, err := s.Tokens.Issue(jwtx.KindTwoFactor, jwtx.NewTwoFactorClaims(u.ID), 0)
		if err != nil {
			return domain.LoginResult{}, fmt.Errorf("issue temp token: %w", err)
		}
		m.Login("two_factor_required")
		log.Info("login awaiting second factor", "user_id", u.ID)
		return domain.LoginResult{User: u, TempToken: temp}, nil
	}

	tokens, err := s.Sessions.Create(ctx, u, c)
	if err != nil {
		return domain.LoginResult{}, err
	}
	m.Login("success")
	return domain.LoginResult{User: u, Tokens: &tokens}, nil
}
