package retrypolicy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/internal/retrypolicy"
)

func TestDoRetriesTransientErrors(t *testing.T) {
	policy := retrypolicy.Policy{MaxAttempts: 3, Base: 0, Cap: 0, Jitter: 0}
	attempts := 0

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.NewTimeoutError("nlp call")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryValidationErrors(t *testing.T) {
	policy := retrypolicy.Default()
	attempts := 0

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return apperrors.NewValidationError("bad input")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsAndSurfaces(t *testing.T) {
	policy := retrypolicy.Policy{MaxAttempts: 2, Base: 0, Cap: 0, Jitter: 0}
	attempts := 0

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return apperrors.NewTimeoutError("nlp call")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}
