// Package retrypolicy wraps sethvargo/go-retry with standard backoff,
// jitter, and attempt-cap defaults, restricted to errors
// internal/errors.Retryable classifies as transient.
package retrypolicy

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
)

// Policy is an exponential-backoff-with-jitter retry policy.
type Policy struct {
	MaxAttempts uint64
	Base        time.Duration
	Cap         time.Duration
	Jitter      float64
}

// Default returns the standard retry policy: 3 attempts, base 1s,
// cap 30s, jitter ±20%.
func Default() Policy {
	return Policy{MaxAttempts: 3, Base: time.Second, Cap: 30 * time.Second, Jitter: 0.2}
}

func (p Policy) backoff() retry.Backoff {
	b := retry.NewExponential(p.Base)
	b = retry.WithCappedDuration(p.Cap, b)
	b = retry.WithJitterPercent(uint64(p.Jitter*100), b)
	b = retry.WithMaxRetries(p.MaxAttempts-1, b)
	return b
}

// Do runs fn, retrying per the policy as long as the error it returns is
// apperrors.Retryable. A non-retryable error returns immediately.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := p.backoff()
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.Retryable(err) {
			return err // non-retryable: retry.Do treats a plain error as terminal
		}
		return retry.RetryableError(err)
	})
}
