package llm

import (
	"context"
	"fmt"

	"github.com/lambdaforge/lambdaforge/logger"
)

type LlmClient interface {
	GetCompletion(ctx context.Context, prompt string) (string, error)
}

type LlmConfig struct {
	Provider    string
	APIKey      string
	ModelName   string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	BatchID     string
	TellmURL    string
}

// NewClient returns the client for cfg.Provider. openrouter is served by the
// OpenAI client pointed at an OpenRouter-compatible base URL.
func NewClient(cfg *LlmConfig, l logger.Logger) (LlmClient, error) {
	if l == nil {
		l = logger.NewNullLogger()
	}
	cfg.BatchID = EnsureBatchID(cfg.BatchID)

	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiClient(cfg, l)
	case "openai", "openrouter":
		return NewOpenAIClient(cfg, l)
	case "anthropic":
		return NewAnthropicClient(cfg, l)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
