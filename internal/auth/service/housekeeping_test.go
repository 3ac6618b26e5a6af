package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dhairyash-1/auth-system/internal/auth/store"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "alice@example.com")

	stale := env.loginSession(t, "alice@example.com")
	require.NoError(t, env.resets.Request(ctx, "alice@example.com"))

	var logs bytes.Buffer
	hk := NewHousekeepingService(env.store, slog.New(slog.NewTextHandler(&logs, nil)), time.Minute, 24*time.Hour)
	hk.Now = fixedClock(time.Now().Add(48 * time.Hour))

	hk.Cleanup(ctx)

	_, err := env.store.Sessions().GetSessionByID(ctx, stale.Session.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := env.store.PasswordResets().DeleteExpiredResetTokens(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Contains(t, logs.String(), "housekeeping cleanup completed")
}

func TestHousekeepingStartStop(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), 0, time.Hour)
	require.Equal(t, time.Hour, hk.Interval)

	hk.Start()
	hk.Stop()
}
