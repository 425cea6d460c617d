package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/adapters/config"
	"github.com/selivandex/marketmood/pkg/logger"
)

// Completer sends a single user prompt and returns the raw completion text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DeepSeekClient talks to the DeepSeek chat completions API through the
// OpenAI-compatible SDK
type DeepSeekClient struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewDeepSeekClient creates new DeepSeek client. Retries are disabled; the
// caller owns timeouts through ctx.
func NewDeepSeekClient(cfg config.DeepSeekConfig, opts ...option.RequestOption) (*DeepSeekClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, opts...)

	return &DeepSeekClient{
		client:      openai.NewClient(reqOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements Completer
func (c *DeepSeekClient) Complete(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("API error (status %d): %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content

	logger.Debug("DeepSeek response",
		zap.Duration("latency", time.Since(startTime)),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(content)),
	)

	return content, nil
}
