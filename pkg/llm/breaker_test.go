package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
)

func TestBreakerClientPassesThroughOnSuccess(t *testing.T) {
	client := wrapWithBreaker(fakeCompletionClient{response: "ok"}, "test-breaker-success")

	out, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestBreakerClientOpensAfterConsecutiveFailures(t *testing.T) {
	client := wrapWithBreaker(fakeCompletionClient{err: errors.New("upstream unavailable")}, "test-breaker-trip")

	for i := 0; i < 5; i++ {
		_, err := client.Complete(context.Background(), "prompt")
		assert.Error(t, err)
	}

	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCircuitOpen))
}
