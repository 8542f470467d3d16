// Package llm provides NLPBackend implementations (ExtractKeyPoints,
// DetectPII, Summarize) over two concrete providers,
// proving the interface's pluggability: AnthropicBackend and
// BedrockBackend. Both build their prompts with tmc/langchaingo's
// prompt-template package.
package llm

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/prompts"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

// Backend is the NLPBackend capability.
type Backend interface {
	ExtractKeyPoints(ctx context.Context, content string) ([]model.KeyPoint, error)
	DetectPII(ctx context.Context, content string) ([]model.Detection, error)
	Summarize(ctx context.Context, content string, maxSentences int) (string, error)
}

// completionClient is the minimal surface both providers adapt to: a
// single-turn text completion call. Narrowing to this one method keeps
// AnthropicBackend/BedrockBackend trivially testable with a fake.
type completionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var keyPointsPrompt = prompts.NewPromptTemplate(
	"Extract the distinct actionable key points from the following work task "+
		"description. Return one key point per line, no numbering.\n\n{{.content}}",
	[]string{"content"},
)

var summarizePrompt = prompts.NewPromptTemplate(
	"Summarize the following content in at most {{.maxSentences}} sentences.\n\n{{.content}}",
	[]string{"content", "maxSentences"},
)

var piiPrompt = prompts.NewPromptTemplate(
	"Identify personally identifiable information in the following text. "+
		"For each item, output \"TYPE|START|END|CONFIDENCE\" on its own line, "+
		"using 0-based character offsets into the original text.\n\n{{.content}}",
	[]string{"content"},
)

// baseBackend shares prompt rendering and response parsing between the
// provider-specific clients.
type baseBackend struct {
	client  completionClient
	timeout time.Duration
}

func (b *baseBackend) ExtractKeyPoints(ctx context.Context, content string) ([]model.KeyPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	rendered, err := keyPointsPrompt.Format(map[string]any{"content": content})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "llm: prompt render failed")
	}

	out, err := b.client.Complete(ctx, rendered)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "llm: key point extraction failed")
	}

	return parseKeyPoints(out), nil
}

func (b *baseBackend) Summarize(ctx context.Context, content string, maxSentences int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if maxSentences <= 0 {
		maxSentences = 3
	}
	rendered, err := summarizePrompt.Format(map[string]any{"content": content, "maxSentences": maxSentences})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "llm: prompt render failed")
	}

	out, err := b.client.Complete(ctx, rendered)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "llm: summarization failed")
	}
	return out, nil
}

func (b *baseBackend) DetectPII(ctx context.Context, content string) ([]model.Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	rendered, err := piiPrompt.Format(map[string]any{"content": content})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "llm: prompt render failed")
	}

	out, err := b.client.Complete(ctx, rendered)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "llm: pii detection failed")
	}
	return parsePIILines(out), nil
}
