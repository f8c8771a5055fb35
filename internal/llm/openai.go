package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client using the official openai-go SDK
// (chat completions). A custom BaseURL points it at any OpenAI-compatible
// server, including a local Ollama.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient validates settings and builds a client.
func NewOpenAIClient(cfg Settings) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{model: cfg.Model, client: openai.NewClient(opts...)}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("complete: %v: %w", err, errdefs.ErrUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("complete: empty choices: %w", errdefs.ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
