package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
)

// breakerClient wraps a completionClient with a sony/gobreaker instance
// guarding the raw HTTP/SDK transport call — the low-level breaker
// pkg/orchestration/dependency.CircuitBreaker's doc comment describes as
// sitting one layer below the domain breaker callers wrap the whole
// NLPBackend operation in.
type breakerClient struct {
	inner completionClient
	cb    *gobreaker.CircuitBreaker
}

// wrapWithBreaker guards inner with a named gobreaker circuit breaker:
// trips after 5 consecutive failures, allows 3 trial requests after a
// 30s recovery timeout, matching this repo's documented breaker
// defaults (failure threshold 5, recovery timeout 30s, half-open trials
// 3).
func wrapWithBreaker(inner completionClient, name string) completionClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &breakerClient{inner: inner, cb: cb}
}

func (b *breakerClient) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", apperrors.NewCircuitOpenError(b.cb.Name())
		}
		return "", err
	}
	return result.(string), nil
}
