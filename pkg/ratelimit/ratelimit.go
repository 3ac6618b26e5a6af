// Package ratelimit implements sliding-window admission control. Each key
// may be admitted at most Rule.Limit times in any interval of length
// Rule.Window; the window slides with every request instead of resetting on
// fixed boundaries.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Rule is a limit of Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Valid reports whether the rule can admit anything at all.
func (r Rule) Valid() bool { return r.Limit > 0 && r.Window > 0 }

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Limit   int

	// Remaining admissions left in the current window after this request.
	Remaining int

	// RetryAfter is how long until the oldest admission leaves the window.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Store records admissions for a key and decides on new ones. Implementations
// must make the check-and-record step atomic per key.
type Store interface {
	Hit(ctx context.Context, key string, rule Rule, now time.Time) (Decision, error)
}

var ErrInvalidRule = errors.New("ratelimit: rule needs a positive limit and window")

// Limiter applies rules against a Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// New returns a Limiter backed by store.
func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records a request for key and reports whether it is admitted.
func (l *Limiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	if !rule.Valid() {
		return Decision{}, ErrInvalidRule
	}
	return l.store.Hit(ctx, key, rule, l.now())
}
