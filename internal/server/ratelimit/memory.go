package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/moviemate/authkeeper/internal/common"
)

// MemoryLimiter is a per-key sliding-window limiter. Each key keeps the
// timestamps of its attempts inside the window; attempts older than the
// window are dropped on every call. Rejected attempts count too, so a key
// is only forgiven one window after its last attempt of any kind.
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter returns a limiter allowing max attempts per key per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow records an attempt for key and returns common.ErrRateLimited if the
// key already used up its budget inside the current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.hits[key] = kept

	if len(kept) > l.max {
		return common.ErrRateLimited
	}
	return nil
}
