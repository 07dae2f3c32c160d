package util

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Retry runs fn up to maxAttempts times. Failed attempts back off
// exponentially from baseDelay with up to 25% random jitter, so parallel
// batch workers retrying against the same API do not fire in lockstep.
// The last error is returned when every attempt fails; cancellation
// during a backoff sleep returns the context error instead.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}
		slog.Debug("retrying after failure",
			"attempt", attempt, "max_attempts", maxAttempts, "delay", delay, "err", err)

		sleep := delay
		if delay > 0 {
			sleep += rand.N(delay/4 + 1)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		delay *= 2
	}
}
