// Package llm provides chat-completion clients for the hosted model APIs
// WiseBot consumes. Clients are stateless per call: the full conversation
// context is supplied on every request.
package llm

import (
	"context"
	"fmt"
	"time"

	"wisebot/internal/config"
	"wisebot/internal/wisdom"
)

// Client is the completion surface the pipeline consumes. It matches
// wisdom.LLMClient so providers can be injected directly.
type Client interface {
	CompleteChat(ctx context.Context, messages []wisdom.Message) (string, error)
	StreamChat(ctx context.Context, messages []wisdom.Message) (<-chan string, <-chan error)
}

// ImageGenerator is implemented by providers that can render images.
type ImageGenerator interface {
	// GenerateImage renders the prompt and returns the image URL.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// NewClient creates a completion client from configuration.
func NewClient(cfg config.LLMConfig, timeout time.Duration) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			ImageModel: cfg.ImageModel,
			Timeout:    timeout,
		}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'openai' or 'anthropic')", cfg.Provider)
	}
}
