package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
	"github.com/Dhairyash-1/auth-system/pkg/cryptox"
	"github.com/Dhairyash-1/auth-system/pkg/idx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxNameLength     = 64
)

// PasswordHasher is the digest primitive. cryptox.PasswordHasher implements it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) error
}

// namePolicy strips every tag from user supplied names.
var namePolicy = bluemonday.StrictPolicy()

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type UserService struct {
	Store    store.Store
	Hasher   PasswordHasher
	Sessions *SessionService // revoked on password change
	Now      func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// Register creates a password account. It does not start a session.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.FirstName = sanitizeName(in.FirstName)
	in.LastName = sanitizeName(in.LastName)
	in.Email = domain.NormalizeEmail(in.Email)

	verr := &ValidationError{}
	validateName(verr, "firstName", in.FirstName)
	validateName(verr, "lastName", in.LastName)
	validateEmail(verr, "email", in.Email)
	validatePassword(verr, "password", in.Password)
	if err := verr.orNil(); err != nil {
		return domain.User{}, err
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: digest,
		Provider:     domain.ProviderEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// Authenticate checks an email/password pair. Unknown accounts, accounts
// bound to an OAuth provider, and wrong passwords fail with distinct errors.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Authenticate")
	defer span.End()

	email = domain.NormalizeEmail(email)

	verr := &ValidationError{}
	validateEmail(verr, "email", email)
	if password == "" {
		verr.add("password", "Password is required")
	}
	if err := verr.orNil(); err != nil {
		return domain.User{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	if u.Provider != domain.ProviderEmail {
		return domain.User{}, &WrongProviderError{Provider: u.Provider}
	}

	if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			slogx.FromContext(ctx).Error("stored password digest unreadable", "user_id", u.ID, "err", err)
		}
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword replaces the password of an email account after checking
// the current one, then revokes every session of the user.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	ctx, span := tracer.Start(ctx, "UserService.ChangePassword")
	defer span.End()

	verr := &ValidationError{}
	if current == "" {
		verr.add("password", "Current Password is required")
	}
	validatePassword(verr, "newPassword", next)
	if err := verr.orNil(); err != nil {
		return err
	}

	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Provider != domain.ProviderEmail {
		return &WrongProviderError{Provider: u.Provider}
	}
	if err := s.Hasher.Verify(current, u.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	digest, err := s.Hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePassword(ctx, u.ID, digest, s.now()); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		n, err := tx.Sessions().DeleteUserSessions(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		revoked = n
		return nil
	})
	if err != nil {
		return err
	}

	if s.Sessions != nil {
		s.Sessions.metrics().SessionsRevoked("password_change", int(revoked))
	}
	slogx.FromContext(ctx).Info("password changed", "user_id", u.ID, "sessions_revoked", revoked)
	return nil
}

func sanitizeName(name string) string {
	return strings.TrimSpace(namePolicy.Sanitize(strings.TrimSpace(name)))
}

func validateName(verr *ValidationError, field, name string) {
	switch {
	case name == "":
		verr.add(field, field+" is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		verr.add(field, fmt.Sprintf("%s must be at most %d characters", field, MaxNameLength))
	}
}

func validateEmail(verr *ValidationError, field, email string) {
	if email == "" {
		verr.add(field, "Email is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		verr.add(field, "Invalid email format")
	}
}

func validatePassword(verr *ValidationError, field, password string) {
	n := utf8.RuneCountInString(password)
	switch {
	case n == 0:
		verr.add(field, "Password is required")
	case n < MinPasswordLength:
		verr.add(field, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	case n > MaxPasswordLength:
		verr.add(field, fmt.Sprintf("Password must be at most %d characters", MaxPasswordLength))
	}
}
