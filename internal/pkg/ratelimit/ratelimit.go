// Package ratelimit implements fixed-window request counting per caller.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store counts hits for a key inside a window that starts with the first
// hit and lasts window.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, rounded up to seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return ((wait + time.Second - 1) / time.Second) * time.Second
}

type Limiter struct {
	store  Store
	max    int
	window time.Duration
	prefix string
}

func NewLimiter(store Store, prefix string, max int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		max:    max,
		window: window,
		prefix: prefix,
	}
}

// Allow records a hit for key. Every hit counts, including rejected ones.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.store.Increment(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max}, fmt.Errorf("rate limit store: %w", err)
	}

	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (l *Limiter) Window() time.Duration {
	return l.window
}
