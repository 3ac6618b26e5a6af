package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

const (
	totpPeriod = 30
	totpSkew   = 1 // steps either side of the current window
	qrSize     = 200
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type TwoFactorService struct {
	Store    store.Store
	Tokens   *jwtx.Issuer
	Sessions *SessionService
	Metrics  Metrics

	// Issuer is shown in authenticator apps.
	Issuer string
	Now    func() time.Time
}

func (s *TwoFactorService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Provision generates a secret for userID without saving it. Nothing is
// persisted until ConfirmEnable sees a valid code for it.
func (s *TwoFactorService) Provision(ctx context.Context, userID string) (domain.TwoFactorProvision, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TwoFactorProvision{}, ErrUserNotFound
		}
		return domain.TwoFactorProvision{}, err
	}
	if u.TwoFactorEnabled {
		return domain.TwoFactorProvision{}, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorProvision{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return domain.TwoFactorProvision{}, fmt.Errorf("render QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.TwoFactorProvision{}, fmt.Errorf("encode QR code: %w", err)
	}

	return domain.TwoFactorProvision{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// ConfirmEnable checks code against the unsaved secret and, if it matches,
// stores the secret and sets the flag in one statement.
func (s *TwoFactorService) ConfirmEnable(ctx context.Context, userID, code, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" || strings.TrimSpace(code) == "" {
		return &ValidationError{Fields: map[string]string{"code": "code and secret are required"}}
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}

	if !s.validate(code, secret) {
		return ErrInvalidCode
	}

	if err := s.Store.Users().EnableTwoFactor(ctx, userID, secret); err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	slogx.FromContext(ctx).Info("two-factor enabled", "user_id", userID)
	return nil
}

// VerifyDuringLogin completes a login that stopped at the second factor.
func (s *TwoFactorService) VerifyDuringLogin(ctx context.Context, tempToken, code string, c Client) (domain.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "TwoFactorService.VerifyDuringLogin")
	defer span.End()

	m := metricsOrNoop(s.Metrics)
	log := slogx.FromContext(ctx)

	claims, err := s.Tokens.Verify(jwtx.KindTwoFactor, tempToken)
	if err != nil {
		m.Login("bad_temp_token")
		return domain.LoginResult{}, ErrInvalidTempToken
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, ErrInvalidTempToken
		}
		return domain.LoginResult{}, err
	}
	if !u.TwoFactorEnabled || u.TwoFactorSecret == nil {
		return domain.LoginResult{}, ErrTwoFactorNotEnabled
	}

	if !s.validate(code, *u.TwoFactorSecret) {
		m.Login("bad_code")
		log.Info("two-factor code rejected", "user_id", u.ID)
		return domain.LoginResult{}, ErrInvalidCode
	}

	tokens, err := s.Sessions.Create(ctx, u, c)
	if err != nil {
		return domain.LoginResult{}, err
	}
	m.Login("success")
	return domain.LoginResult{User: u, Tokens: &tokens}, nil
}

// Disable clears the flag and wipes the stored secret.
func (s *TwoFactorService) Disable(ctx context.Context, userID string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !u.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	if err := s.Store.Users().DisableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}
	slogx.FromContext(ctx).Info("two-factor disabled", "user_id", userID)
	return nil
}

// validate accepts codes from the previous, current and next 30 second step.
func (s *TwoFactorService) validate(code, secret string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now(), totpOpts)
	return err == nil && ok
}
