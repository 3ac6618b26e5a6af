package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dhairyash-1/auth-system/internal/auth/store"
)

// HousekeepingService periodically cleans up expired database records
// to prevent unbounded growth of reset tokens and abandoned sessions.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// IdleAfter is how long a session may go unrefreshed before it is
	// purged. It matches the refresh token lifetime, after which the
	// session can no longer be resumed anyway.
	IdleAfter time.Duration

	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, idleAfter time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		IdleAfter: idleAfter,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one pass. Each deletion is independent; a failure in one
// does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	n, err := s.Store.PasswordResets().DeleteExpiredResetTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired reset tokens", "error", err)
	} else {
		s.Logger.Debug("deleted expired reset tokens", "count", n)
	}

	if s.IdleAfter > 0 {
		n, err := s.Store.Sessions().DeleteIdleSessions(ctx, now.Add(-s.IdleAfter))
		if err != nil {
			s.Logger.Error("failed to delete idle sessions", "error", err)
		} else {
			s.Logger.Debug("deleted idle sessions", "count", n)
		}
	}

	s.Logger.Info("housekeeping cleanup completed")
}
