package exchange

import (
	"context"
	"time"
)

// maxBackoff caps the exponential growth between attempts.
const maxBackoff = 5 * time.Second

// WithRetry runs op up to attempts times with exponential backoff, stopping
// early when retryable reports false for the returned error or when ctx is
// done. The last error is returned.
func WithRetry(ctx context.Context, attempts int, sleep time.Duration, retryable func(error) bool, op func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	backoff := sleep
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if i == attempts-1 || (retryable != nil && !retryable(err)) {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
	return err
}
