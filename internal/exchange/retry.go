package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries an operation with doubling backoff while the error
// matches the predicate. Application-level rejections are never retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy mirrors the transport retry used across the bot:
// 3 retries, 500ms initial delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Retryable:   retryable,
	}
}

// Do runs fn, retrying transient failures up to MaxAttempts times.
func (p RetryPolicy) Do(ctx context.Context, log *zap.Logger, op string, fn func() error) error {
	delay := p.BaseDelay
	attempt := 0
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		attempt++
		if attempt > p.MaxAttempts {
			log.Error("retry exhausted",
				zap.String("op", op),
				zap.Int("attempts", attempt-1),
				zap.Error(err))
			return err
		}
		log.Warn("retrying after transport error",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max", p.MaxAttempts),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
