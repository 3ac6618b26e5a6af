package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Dhairyash-1/auth-system/internal/auth/domain"
	"github.com/Dhairyash-1/auth-system/internal/auth/store"
	"github.com/Dhairyash-1/auth-system/pkg/cryptox"
	"github.com/Dhairyash-1/auth-system/pkg/idx"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

// Client describes the device a session is opened from.
type Client struct {
	UserAgent string
	Device    domain.DeviceInfo
}

// SessionService owns the session registry and the token pairs bound to it.
type SessionService struct {
	Store  store.Store
	Tokens *jwtx.Issuer

	// RotateRefresh renews the refresh token on every refresh and retires
	// the previous value.
	RotateRefresh bool

	Metrics Metrics
	Now     func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) metrics() Metrics { return metricsOrNoop(s.Metrics) }

// Create opens a session for u and mints its token pair. The row is inserted
// first because both tokens embed its id; the refresh fingerprint is written
// back in the same transaction.
func (s *SessionService) Create(ctx context.Context, u domain.User, c Client) (domain.SessionTokens, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Create")
	defer span.End()

	now := s.now()
	sess := domain.Session{
		ID:         idx.NewAt(now).String(),
		UserID:     u.ID,
		UserAgent:  c.UserAgent,
		Device:     c.Device,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))

	var pair jwtx.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		var err error
		pair, err = s.Tokens.IssuePair(u.ID, u.Email, sess.ID)
		if err != nil {
			return fmt.Errorf("issue tokens: %w", err)
		}

		sess.RefreshTokenHash = cryptox.FingerprintToken(pair.RefreshToken)
		return tx.Sessions().SetRefreshTokenHash(ctx, sess.ID, sess.RefreshTokenHash)
	})
	if err != nil {
		return domain.SessionTokens{}, err
	}

	slogx.FromContext(ctx).Info("session created",
		"user_id", u.ID,
		"session_id", sess.ID,
		"browser", sess.Device.Browser,
		"os", sess.Device.OS,
	)
	return tokensFor(sess, pair), nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrSessionNotFound
	}
	return sess, err
}

// List returns the user's sessions newest first, marking the one the
// request came from.
func (s *SessionService) List(ctx context.Context, userID, currentSessionID string) ([]domain.SessionSummary, error) {
	sessions, err := s.Store.Sessions().ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, domain.SessionSummary{
			Session:   sess,
			IsCurrent: sess.ID == currentSessionID,
		})
	}
	return out, nil
}

// Terminate deletes one session owned by requesterID.
func (s *SessionService) Terminate(ctx context.Context, sessionID, requesterID string) error {
	err := s.Store.Sessions().DeleteSessionForUser(ctx, sessionID, requesterID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.metrics().SessionsRevoked("logout", 1)
	slogx.FromContext(ctx).Info("session terminated", "user_id", requesterID, "session_id", sessionID)
	return nil
}

// TerminateAllExcept deletes every session of userID other than keepID.
func (s *SessionService) TerminateAllExcept(ctx context.Context, userID, keepID string) (int64, error) {
	n, err := s.Store.Sessions().DeleteUserSessionsExcept(ctx, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}

	s.metrics().SessionsRevoked("terminate_others", int(n))
	slogx.FromContext(ctx).Info("other sessions terminated", "user_id", userID, "kept", keepID, "count", n)
	return n, nil
}

// CheckSession confirms the session named by an access token is still live.
func (s *SessionService) CheckSession(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" {
		return ErrSessionRevoked
	}
	sess, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionRevoked
	}
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if sess.UserID != userID {
		return ErrSessionRevoked
	}
	return nil
}

// Refresh exchanges a refresh token for a new access token. Expired or
// tampered refresh tokens fail with ErrInvalidRefresh; a token whose session
// is gone fails with ErrSessionRevoked. With rotation enabled the refresh
// token is replaced through a compare-and-swap, so of two concurrent
// refreshes presenting the same token only one succeeds and the other gets
// ErrRefreshSuperseded.
func (s *SessionService) Refresh(ctx context.Context, rawRefresh string) (domain.SessionTokens, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Refresh")
	defer span.End()

	log := slogx.FromContext(ctx)

	tokens, result, err := s.refresh(ctx, log, rawRefresh)
	s.metrics().Refresh(result)
	if err != nil {
		span.SetAttributes(attribute.String("refresh.result", result))
		return domain.SessionTokens{}, err
	}
	return tokens, nil
}

func (s *SessionService) refresh(ctx context.Context, log *slog.Logger, raw string) (domain.SessionTokens, string, error) {
	if raw == "" {
		return domain.SessionTokens{}, "invalid", ErrInvalidRefresh
	}

	claims, err := s.Tokens.Verify(jwtx.KindRefresh, raw)
	if err != nil {
		return domain.SessionTokens{}, "invalid", ErrInvalidRefresh
	}

	sess, err := s.Store.Sessions().GetSessionByID(ctx, claims.SID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SessionTokens{}, "revoked", ErrSessionRevoked
	}
	if err != nil {
		return domain.SessionTokens{}, "error", fmt.Errorf("lookup session: %w", err)
	}
	if sess.UserID != claims.Subject {
		return domain.SessionTokens{}, "revoked", ErrSessionRevoked
	}

	if !cryptox.FingerprintMatches(raw, sess.RefreshTokenHash) {
		log.Warn("superseded refresh token presented", "user_id", sess.UserID, "session_id", sess.ID)
		return domain.SessionTokens{}, "reused", ErrRefreshSuperseded
	}

	u, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SessionTokens{}, "revoked", ErrSessionRevoked
	}
	if err != nil {
		return domain.SessionTokens{}, "error", fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()

	if !s.RotateRefresh {
		access, err := s.Tokens.Issue(jwtx.KindAccess, jwtx.NewAccessClaims(u.ID, u.Email, sess.ID), 0)
		if err != nil {
			return domain.SessionTokens{}, "error", fmt.Errorf("issue access token: %w", err)
		}
		if err := s.Store.Sessions().TouchSession(ctx, sess.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.SessionTokens{}, "revoked", ErrSessionRevoked
			}
			return domain.SessionTokens{}, "error", fmt.Errorf("touch session: %w", err)
		}
		sess.LastSeenAt = now

		var refreshExp time.Time
		if claims.ExpiresAt != nil {
			refreshExp = claims.ExpiresAt.UTC()
		}
		return domain.SessionTokens{
			Session:          sess,
			AccessToken:      access,
			RefreshToken:     raw,
			AccessExpiresAt:  now.Add(s.Tokens.TTL(jwtx.KindAccess)),
			RefreshExpiresAt: refreshExp,
		}, "ok", nil
	}

	pair, err := s.Tokens.IssuePair(u.ID, u.Email, sess.ID)
	if err != nil {
		return domain.SessionTokens{}, "error", fmt.Errorf("issue tokens: %w", err)
	}

	newHash := cryptox.FingerprintToken(pair.RefreshToken)
	err = s.Store.Sessions().RotateRefreshTokenHash(ctx, sess.ID, sess.RefreshTokenHash, newHash, now)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.SessionTokens{}, "revoked", ErrSessionRevoked
	case errors.Is(err, store.ErrConflict):
		log.Warn("concurrent refresh lost rotation", "user_id", sess.UserID, "session_id", sess.ID)
		return domain.SessionTokens{}, "reused", ErrRefreshSuperseded
	case err != nil:
		return domain.SessionTokens{}, "error", fmt.Errorf("rotate refresh token: %w", err)
	}

	sess.RefreshTokenHash = newHash
	sess.LastSeenAt = now
	log.Debug("refresh token rotated", "user_id", sess.UserID, "session_id", sess.ID)
	return tokensFor(sess, pair), "ok", nil
}

func tokensFor(sess domain.Session, pair jwtx.TokenPair) domain.SessionTokens {
	return domain.SessionTokens{
		Session:          sess,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}
