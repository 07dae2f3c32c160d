package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces calls to a shared API by enforcing a minimum interval
// between consecutive starts, so at most perMinute calls begin in any
// one-minute window. Slots are handed out in request order, which keeps
// batch workers from bunching up after a long fetch.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute calls per
// minute. A non-positive rate is treated as one call per minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{interval: time.Minute / time.Duration(perMinute)}
}

// Wait blocks until the caller's slot arrives, or returns the context
// error on cancellation. The first call never blocks.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	start := rl.next
	if start.Before(now) {
		start = now
	}
	rl.next = start.Add(rl.interval)
	rl.mu.Unlock()

	wait := time.Until(start)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
