// Package retry reruns operations against backends that may not be up yet.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy bounds a retry loop. A zero AttemptTimeout leaves each attempt
// bound only by the caller's context.
type Policy struct {
	Attempts       int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// Startup is the policy used while waiting for a database at boot.
var Startup = Policy{
	Attempts:       6,
	BaseDelay:      500 * time.Millisecond,
	MaxDelay:       5 * time.Second,
	AttemptTimeout: 2 * time.Second,
}

// Do runs fn until it succeeds, the attempts run out or ctx is done. The
// delay doubles after every failure up to MaxDelay, and each failure that
// will be retried is logged under op. The last error is returned.
func Do(ctx context.Context, logger *slog.Logger, op string, p Policy, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := max(p.Attempts, 1)

	var err error
	delay := p.BaseDelay
	for i := 1; i <= attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = attempt(ctx, p.AttemptTimeout, fn); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		logger.Warn("attempt failed, retrying",
			"event", "retry_attempt_failed",
			"module", "retry",
			"layer", "platform",
			"op", op,
			"attempt", i,
			"max_attempts", attempts,
			"delay", delay.String(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}

func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
