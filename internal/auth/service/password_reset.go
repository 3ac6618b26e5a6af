package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/mailer"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
	"github.com/Dhairyash-1/auth-system/pkg/cryptox"
	"github.com/Dhairyash-1/auth-system/pkg/idx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

const DefaultResetTTL = 15 * time.Minute

type PasswordResetService struct {
	Store   store.Store
	Hasher  PasswordHasher
	Mailer  mailer.Sender
	Metrics Metrics

	// FrontendURL is the base of the emailed reset link.
	FrontendURL string
	TTL         time.Duration
	Now         func() time.Time
}

func (s *PasswordResetService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PasswordResetService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultResetTTL
}

// Request emails a reset link when email belongs to a password account.
// The caller always reports success so the response never reveals whether
// the account exists.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "PasswordResetService.Request")
	defer span.End()

	m := metricsOrNoop(s.Metrics)
	log := slogx.FromContext(ctx)

	email = domain.NormalizeEmail(email)
	verr := &ValidationError{}
	validateEmail(verr, "email", email)
	if err := verr.orNil(); err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		m.PasswordReset("unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if u.Provider != domain.ProviderEmail {
		m.PasswordReset("wrong_provider")
		log.Info("password reset skipped for oauth account", "user_id", u.ID, "provider", u.Provider)
		return nil
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now()
	tok := domain.PasswordResetToken{
		ID:        idx.NewAt(now).String(),
		Email:     u.Email,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}

	// A new request supersedes every earlier one.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.PasswordResets().DeleteResetTokensByEmail(ctx, u.Email); err != nil {
			return fmt.Errorf("purge reset tokens: %w", err)
		}
		return tx.PasswordResets().CreateResetToken(ctx, tok)
	})
	if err != nil {
		return err
	}

	html, err := mailer.PasswordResetEmail(
		strings.TrimSpace(u.FirstName+" "+u.LastName),
		s.resetLink(raw, u.Email),
		s.ttl(),
		now,
	)
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	if err := s.Mailer.Send(ctx, u.Email, mailer.PasswordResetSubject, html); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	m.PasswordReset("requested")
	log.Info("password reset requested", "user_id", u.ID)
	return nil
}

func (s *PasswordResetService) resetLink(raw, email string) string {
	q := url.Values{}
	q.Set("token", raw)
	q.Set("email", email)
	return strings.TrimRight(s.FrontendURL, "/") + "/reset-password?" + q.Encode()
}

// Reset consumes a reset token. On success the password is replaced, every
// outstanding token for the email is purged and all of the user's sessions
// are revoked.
func (s *PasswordResetService) Reset(ctx context.Context, email, rawToken, newPassword string) error {
	ctx, span := tracer.Start(ctx, "PasswordResetService.Reset")
	defer span.End()

	m := metricsOrNoop(s.Metrics)

	email = domain.NormalizeEmail(email)
	verr := &ValidationError{}
	validateEmail(verr, "email", email)
	if strings.TrimSpace(rawToken) == "" {
		verr.add("token", "Token is required")
	}
	validatePassword(verr, "password", newPassword)
	if err := verr.orNil(); err != nil {
		return err
	}

	digest, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	var (
		userID  string
		revoked int64
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.PasswordResets().GetActiveResetToken(ctx, email, cryptox.FingerprintToken(rawToken), now)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("lookup reset token: %w", err)
		}

		u, err := tx.Users().GetUserByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}
		if u.Provider != domain.ProviderEmail {
			return ErrPasswordLogin
		}
		userID = u.ID

		if err := tx.Users().UpdatePassword(ctx, u.ID, digest, now); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if _, err := tx.PasswordResets().DeleteResetTokensByEmail(ctx, email); err != nil {
			return fmt.Errorf("purge reset tokens: %w", err)
		}
		revoked, err = tx.Sessions().DeleteUserSessions(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			m.PasswordReset("invalid_token")
		}
		return err
	}

	m.PasswordReset("completed")
	m.SessionsRevoked("password_reset", int(revoked))
	slogx.FromContext(ctx).Info("password reset completed", "user_id", userID, "sessions_revoked", revoked)
	return nil
}
