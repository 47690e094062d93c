package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config selects and configures a provider.
type Config struct {
	Name       string
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration
}

// New builds the provider named by cfg.Name, wrapped with retries.
func New(ctx context.Context, cfg Config) (Provider, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var p Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "anthropic":
		p = NewAnthropicProvider(AnthropicConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			MaxTokens:  cfg.MaxTokens,
			HTTPClient: httpClient,
		})
	case "openai":
		p = NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			MaxTokens:  cfg.MaxTokens,
			HTTPClient: httpClient,
		})
	case "gemini":
		g, err := NewGeminiProvider(ctx, GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			MaxTokens:  cfg.MaxTokens,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
	return WithRetry(p, cfg.MaxRetries), nil
}
