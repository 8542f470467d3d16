package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompletionClient struct {
	response string
	err      error
}

func (f fakeCompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestExtractKeyPointsParsesLines(t *testing.T) {
	b := &baseBackend{client: fakeCompletionClient{response: "- Implement OAuth2 login\n- Integrate with Google API\n"}, timeout: time.Second}

	points, err := b.ExtractKeyPoints(context.Background(), "Implement OAuth2 with Google. Then integrate with API.")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "Implement OAuth2 login", points[0].Text)
}

func TestSummarizeDefaultsMaxSentences(t *testing.T) {
	b := &baseBackend{client: fakeCompletionClient{response: "A short summary."}, timeout: time.Second}

	summary, err := b.Summarize(context.Background(), "long content", 0)
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", summary)
}

func TestDetectPIIParsesStructuredLines(t *testing.T) {
	b := &baseBackend{client: fakeCompletionClient{response: "EMAIL|10|30|0.95\n"}, timeout: time.Second}

	detections, err := b.DetectPII(context.Background(), "contact me at someone@example.com please")
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "email", detections[0].Type)
	assert.Equal(t, 10, detections[0].Start)
	assert.Equal(t, 30, detections[0].End)
}
