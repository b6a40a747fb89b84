package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"voice-chatbot/internal/domain"
)

// RemoteGenerator asks an OpenAI compatible completion server, such as a local
// llama.cpp or Ollama instance serving a quantized model.
type RemoteGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewRemoteGenerator(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *RemoteGenerator {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if maxTokens <= 0 {
		maxTokens = domain.DefaultMaxTokens
	}
	return &RemoteGenerator{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (g *RemoteGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:     g.model,
		Prompt:    prompt,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("requesting completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from completion endpoint")
	}

	return strings.TrimSpace(resp.Choices[0].Text), nil
}
