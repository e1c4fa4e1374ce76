package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig shapes the backoff schedule of Retry. The zero value
// tries fn exactly once.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is the wait after the first failure.
	BaseDelay time.Duration
	// MaxDelay caps the geometric growth.
	MaxDelay time.Duration
	// Growth multiplies the delay after every failed attempt.
	Growth float64
	// Jitter spreads each wait over [delay/2, delay) so contending
	// processes do not retry in lockstep.
	Jitter bool
}

// LockRetryConfig is tuned for engine-lock contention: another facet
// process normally releases the data directory within a second or
// two, so short waits with jitter beat long ones.
func LockRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  6,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  2 * time.Second,
		Growth:    2.0,
		Jitter:    true,
	}
}

// Retry runs fn until it succeeds, the attempts run out, or ctx is
// canceled. Cancellation wins over the schedule at every point,
// including mid-wait. When the attempts run out the last failure is
// returned wrapped, so callers can still match it with errors.Is.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= cfg.Attempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := delay
		if cfg.Jitter && delay > 0 {
			wait = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * cfg.Growth)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
