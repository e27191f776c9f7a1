package llm

import (
	"context"
	"fmt"

	"github.com/lambdaforge/lambdaforge/extract"
)

// Generate sends prompt as a single request and returns the raw reply.
func Generate(ctx context.Context, client LlmClient, prompt string) (string, error) {
	reply, err := client.GetCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to get completion: %w", err)
	}
	if reply == "" {
		return "", fmt.Errorf("empty completion returned")
	}
	return reply, nil
}

// GenerateFiles sends prompt and extracts the labeled blocks named by want
// (path to tag) from the reply. Missing blocks are reported with Found=false.
func GenerateFiles(ctx context.Context, client LlmClient, prompt string, want map[string]string) (string, map[string]extract.Block, error) {
	reply, err := Generate(ctx, client, prompt)
	if err != nil {
		return "", nil, err
	}
	return reply, extract.ExtractAll(reply, want), nil
}
