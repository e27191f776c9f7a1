package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/lambdaforge/lambdaforge/logger"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to the OpenAI chat completions API or any compatible
// endpoint such as OpenRouter.
type OpenAIClient struct {
	openAIClient *openai.Client
	config       *LlmConfig
	usage        usageSink
	logger       logger.Logger
}

func NewOpenAIClient(cfg *LlmConfig, logger logger.Logger) (LlmClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		openAIClient: openai.NewClientWithConfig(oc),
		config:       cfg,
		usage:        newUsageSink(cfg.TellmURL),
		logger:       logger,
	}, nil
}

func (c *OpenAIClient) provider() string {
	if c.config.Provider == "openrouter" {
		return "OpenRouter"
	}
	return "OpenAI"
}

func (c *OpenAIClient) GetCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := c.openAIClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.config.ModelName,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: c.config.Temperature,
			MaxTokens:   c.config.MaxTokens,
		},
	)

	e := &openai.APIError{}
	if errors.As(err, &e) {
		return "", statusError(c.provider(), e.HTTPStatusCode, e.Message)
	}
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", c.provider(), err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", c.provider())
	}
	usage := resp.Usage
	res := resp.Choices[0].Message.Content
	recordUsage(c.usage, c.config, c.logger, prompt, res, usage.PromptTokens, usage.CompletionTokens)

	return res, nil
}
