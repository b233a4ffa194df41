package traffic

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// SessionLimiter caps how many browser sessions run at once. Callers over the
// limit wait in line until a slot frees up or their context ends.
type SessionLimiter struct {
	sem   *semaphore.Weighted
	limit int64
}

// NewSessionLimiter returns a limiter for max concurrent sessions, or nil when
// max is zero or negative. A nil limiter admits everyone.
func NewSessionLimiter(max int) *SessionLimiter {
	if max <= 0 {
		return nil
	}
	return &SessionLimiter{sem: semaphore.NewWeighted(int64(max)), limit: int64(max)}
}

// Acquire blocks until a session slot is available.
func (l *SessionLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.sem.Acquire(ctx, 1)
}

// Release returns a slot taken by Acquire.
func (l *SessionLimiter) Release() {
	if l == nil {
		return
	}
	l.sem.Release(1)
}

// Limit returns the configured cap, 0 meaning unlimited.
func (l *SessionLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return int(l.limit)
}
