package worker

import (
	"context"
	"fmt"

	"github.com/aescanero/dago-libs/pkg/domain"
	"github.com/aescanero/dago-libs/pkg/ports"

	"github.com/aescanero/dago-node-template/internal/selector"
)

// DefaultMaxTokens bounds completions of rendered prompts
const DefaultMaxTokens = 1024

// NewLLMCompleter adapts an LLM client to a prompt-in, text-out function.
// A nil client yields a nil function.
func NewLLMCompleter(client ports.LLMClient, model string) selector.CompleteFunc {
	if client == nil {
		return nil
	}

	return func(ctx context.Context, prompt string) (string, error) {
		req := &domain.LLMRequest{
			Model: model,
			Messages: []domain.Message{
				{
					Role:    "user",
					Content: prompt,
				},
			},
			MaxTokens: DefaultMaxTokens,
		}

		respInterface, err := client.GenerateCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("llm completion failed: %w", err)
		}

		resp, ok := respInterface.(*domain.LLMResponse)
		if !ok {
			return "", fmt.Errorf("unexpected response type from LLM: %T", respInterface)
		}

		return resp.Content, nil
	}
}
