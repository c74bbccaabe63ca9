// Package retry provides bounded retry with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidAttempts signals a non-positive attempt budget.
var ErrInvalidAttempts = errors.New("retry: attempts must be positive")

// WithBackoff runs op up to attempts times, doubling the delay between
// attempts starting from base. Returns the last error when the budget is
// exhausted, or the context error when canceled between attempts.
func WithBackoff(ctx context.Context, logger *zap.Logger, attempts int, base time.Duration, op func() error) error {
	if attempts <= 0 {
		return ErrInvalidAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := base << (attempt - 1)
		logger.Debug("operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
