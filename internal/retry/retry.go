// Package retry provides a bounded retry-with-backoff policy shared by the
// poller's reconnect logic and remote-session recovery.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy describes a bounded retry schedule with linear backoff capped at
// MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default is the schedule used for mailbox reconnects: up to six attempts,
// 10s, 20s, ... capped at 5 minutes.
var Default = Policy{
	MaxAttempts: 6,
	BaseDelay:   10 * time.Second,
	MaxDelay:    5 * time.Minute,
}

// Delay returns the backoff before the given attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * p.BaseDelay
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The returned error wraps the last failure.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		slog.Warn("Operation failed, retrying after delay",
			"op", op, "attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, p.MaxAttempts, lastErr)
}
