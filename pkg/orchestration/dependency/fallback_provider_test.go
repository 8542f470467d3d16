package dependency_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/internal/clock"
	"github.com/taskforge/orchestrator/pkg/orchestration/dependency"
)

func TestFallbackProviderUsesPrimaryWhenHealthy(t *testing.T) {
	p := dependency.NewFallbackProvider(
		"search",
		func(ctx context.Context) (string, error) { return "primary-result", nil },
		func(ctx context.Context) (string, error) { return "fallback-result", nil },
		nil,
		nil,
	)

	result, degraded, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "primary-result", result)
	assert.Equal(t, int64(1), p.Metrics().PrimaryHits)
}

func TestFallbackProviderDegradesOnPrimaryFailure(t *testing.T) {
	p := dependency.NewFallbackProvider(
		"search",
		func(ctx context.Context) (string, error) { return "", errors.New("boom") },
		func(ctx context.Context) (string, error) { return "fallback-result", nil },
		nil,
		nil,
	)

	result, degraded, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, "fallback-result", result)
	assert.Equal(t, int64(1), p.Metrics().FallbackHits)
	assert.Equal(t, int64(1), p.Metrics().Failures)
}

func TestFallbackProviderErrorsWithNoFallbackConfigured(t *testing.T) {
	p := dependency.NewFallbackProvider[string](
		"search",
		func(ctx context.Context) (string, error) { return "", errors.New("boom") },
		nil,
		nil,
		nil,
	)

	_, degraded, err := p.Get(context.Background())
	assert.True(t, degraded)
	assert.ErrorIs(t, err, dependency.ErrNoFallbackAvailable)
}

func TestFallbackProviderRespectsOpenBreaker(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cb := dependency.NewCircuitBreaker("search", 0.5, time.Minute, 3, fake, nil)
	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}
	require.Equal(t, dependency.StateOpen, cb.State())

	primaryCalled := false
	p := dependency.NewFallbackProvider(
		"search",
		func(ctx context.Context) (string, error) { primaryCalled = true; return "primary", nil },
		func(ctx context.Context) (string, error) { return "fallback", nil },
		cb,
		nil,
	)

	result, degraded, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, primaryCalled)
	assert.True(t, degraded)
	assert.Equal(t, "fallback", result)
}

func TestDependencyManagerAggregatesMetrics(t *testing.T) {
	mgr := dependency.NewDependencyManager()
	p := dependency.NewFallbackProvider(
		"search",
		func(ctx context.Context) (string, error) { return "ok", nil },
		nil,
		nil,
		nil,
	)
	mgr.Register("search", p)
	_, _, _ = p.Get(context.Background())

	all := mgr.AllMetrics()
	require.Contains(t, all, "search")
	assert.Equal(t, int64(1), all["search"].PrimaryHits)
}
