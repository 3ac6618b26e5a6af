package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often idle keys are dropped from memory.
const sweepInterval = 5 * time.Minute

// MemoryStore keeps a timestamp log per key in process memory. State is lost
// on restart, which is acceptable for admission control.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	hits    []time.Time
	horizon time.Duration
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, rule Rule, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeSweep(now)

	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}
	w.horizon = rule.Window
	w.prune(now.Add(-rule.Window))

	if len(w.hits) >= rule.Limit {
		return Decision{
			Allowed:    false,
			Limit:      rule.Limit,
			Remaining:  0,
			RetryAfter: w.hits[0].Add(rule.Window).Sub(now),
		}, nil
	}

	w.hits = append(w.hits, now)
	return Decision{
		Allowed:   true,
		Limit:     rule.Limit,
		Remaining: rule.Limit - len(w.hits),
	}, nil
}

// prune drops admissions at or before cutoff.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

// maybeSweep removes keys whose log has fully aged out. Caller holds s.mu.
func (s *MemoryStore) maybeSweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	for key, w := range s.windows {
		w.prune(now.Add(-w.horizon))
		if len(w.hits) == 0 {
			delete(s.windows, key)
		}
	}
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
