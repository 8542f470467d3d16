package llm

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/internal/config"
)

// bedrockClient adapts bedrockruntime's InvokeModel to completionClient,
// using the Anthropic-on-Bedrock request/response envelope.
type bedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
}

type bedrockRequest struct {
	AnthropicVersion string              `json:"anthropic_version"`
	MaxTokens        int                 `json:"max_tokens"`
	Messages         []bedrockMessage    `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *bedrockClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "bedrock: request marshal failed")
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "bedrock: invoke model failed")
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "bedrock: response unmarshal failed")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// BedrockBackend is one NLPBackend implementation over AWS Bedrock,
// proving NLPBackend's pluggability alongside AnthropicBackend.
type BedrockBackend struct {
	baseBackend
}

// NewBedrockBackend constructs a BedrockBackend from cfg, loading AWS
// credentials via the default provider chain (profile, env, IMDS).
func NewBedrockBackend(ctx context.Context, cfg config.LLMConfig) (*BedrockBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "llm: invalid bedrock config")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "llm: aws config load failed")
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	return &BedrockBackend{
		baseBackend: baseBackend{
			client:  wrapWithBreaker(&bedrockClient{client: client, modelID: cfg.Model}, "llm.bedrock"),
			timeout: cfg.Timeout,
		},
	}, nil
}
