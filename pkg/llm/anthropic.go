package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/internal/config"
)

// anthropicClient adapts anthropic-sdk-go's Messages API to
// completionClient.
type anthropicClient struct {
	client *anthropic.Client
	model  string
}

func (c *anthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "anthropic: completion failed")
	}

	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

// AnthropicBackend is one NLPBackend implementation over the Anthropic API.
type AnthropicBackend struct {
	baseBackend
}

// NewAnthropicBackend constructs an AnthropicBackend from cfg.
func NewAnthropicBackend(cfg config.LLMConfig) (*AnthropicBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "llm: invalid anthropic config")
	}

	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{
		baseBackend: baseBackend{
			client:  wrapWithBreaker(&anthropicClient{client: &client, model: cfg.Model}, "llm.anthropic"),
			timeout: cfg.Timeout,
		},
	}, nil
}
