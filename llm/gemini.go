package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/lambdaforge/lambdaforge/logger"
	"google.golang.org/genai"
)

type GeminiClient struct {
	client *genai.Client
	config *LlmConfig
	usage  usageSink
	logger logger.Logger
}

func NewGeminiClient(cfg *LlmConfig, logger logger.Logger) (LlmClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: cfg,
		usage:  newUsageSink(cfg.TellmURL),
		logger: logger,
	}, nil
}

func (c *GeminiClient) GetCompletion(ctx context.Context, prompt string) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.config.Temperature),
	}
	if c.config.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(c.config.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.ModelName, genai.Text(prompt), gc)
	if err != nil {
		return "", fmt.Errorf("Gemini request failed: %w", err)
	}

	res := resp.Text()
	if res == "" {
		return "", errors.New("no content returned from Gemini")
	}

	var in, out int
	if resp.UsageMetadata != nil {
		in = int(resp.UsageMetadata.PromptTokenCount)
		out = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	recordUsage(c.usage, c.config, c.logger, prompt, res, in, out)

	return res, nil
}
