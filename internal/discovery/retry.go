package discovery

import (
	"context"
	"time"
)

// withRetry runs fn with exponential backoff and a bounded number of
// attempts. Each attempt gets its own deadline so a hung RPC cannot stall
// the whole discovery call.
func withRetry(ctx context.Context, maxRetries int, baseDelay, attemptTimeout time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := runAttempt(ctx, attemptTimeout, fn)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

func runAttempt(ctx context.Context, attemptTimeout time.Duration, fn func(context.Context) error) error {
	if attemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}
