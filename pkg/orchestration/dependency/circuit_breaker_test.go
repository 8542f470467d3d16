package dependency_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/orchestrator/internal/clock"
	"github.com/taskforge/orchestrator/pkg/orchestration/dependency"
)

func TestCircuitBreakerTripsOnFailureRate(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cb := dependency.NewCircuitBreaker("nlp-backend", 0.5, time.Second, 3, fake, nil)

	assert.Equal(t, dependency.StateClosed, cb.State())

	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}

	assert.Equal(t, dependency.StateOpen, cb.State())
}

func TestCircuitBreakerDoesNotTripBelowMinimumSamples(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cb := dependency.NewCircuitBreaker("search-backend", 0.1, time.Second, 3, fake, nil)

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, dependency.StateClosed, cb.State())
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cb := dependency.NewCircuitBreaker("notify", 0.5, 10*time.Second, 2, fake, nil)

	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}
	require.Equal(t, dependency.StateOpen, cb.State())

	fake.Advance(11 * time.Second)
	assert.Equal(t, dependency.StateHalfOpen, cb.State())

	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return nil })

	assert.Equal(t, dependency.StateClosed, cb.State())
}

func TestCircuitBreakerOpenFailsFast(t *testing.T) {
	fake := clock.NewFake(time.Now())
	cb := dependency.NewCircuitBreaker("kms", 0.5, time.Minute, 3, fake, nil)

	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}
	require.Equal(t, dependency.StateOpen, cb.State())

	err := cb.Execute(func() error {
		t.Fatal("fn should not be invoked while breaker is open")
		return nil
	})
	assert.Error(t, err)
}
