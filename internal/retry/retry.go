// Package retry wraps record-store calls with bounded exponential
// backoff. It is the only place in the read/write path allowed to
// sleep.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/motorpool/motorpool/internal/ports"
)

// Config controls the backoff schedule. After a transient failure on
// attempt n (1-based) the shell sleeps Base * Multiplier^n before the
// next attempt.
type Config struct {
	MaxAttempts int
	Base        time.Duration
	Multiplier  float64
}

// DefaultConfig matches the historical store client: three attempts
// with a factor-two backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Base:        time.Second,
		Multiplier:  2,
	}
}

// Do runs fn, retrying transient store failures per the schedule.
// Non-transient errors propagate immediately without a retry. When
// attempts are exhausted the last error is wrapped in
// ports.ErrOperationFailed. The backoff sleep is cancellable through
// ctx.
func (c Config) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, c.backoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ports.ErrOperationFailed, lastErr)
}

func (c Config) backoff(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	return time.Duration(float64(c.Base) * math.Pow(multiplier, float64(attempt)))
}

func transient(err error) bool {
	return errors.Is(err, ports.ErrStoreUnavailable) || errors.Is(err, ports.ErrRateLimited)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
