package llm

import (
	"context"
	"fmt"

	"tripreport/internal/config"
)

// NewFromConfig builds the configured provider wrapped in a TracedGenerator.
func NewFromConfig(ctx context.Context, cfg config.AI) (Generator, error) {
	switch cfg.Provider {
	case "", "gemini":
		client, err := NewGeminiClient(ctx, GeminiOptions{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			ImageModel:  cfg.Gemini.ImageModel,
			Temperature: cfg.Gemini.Temperature,
			Timeout:     config.Duration(cfg.Gemini.Timeout, 0),
		})
		if err != nil {
			return nil, err
		}
		return NewTracedGenerator(client, client.Model()), nil
	case "openai":
		client, err := NewOpenAIClient(OpenAIOptions{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: config.Duration(cfg.OpenAI.Timeout, 0),
		})
		if err != nil {
			return nil, err
		}
		return NewTracedGenerator(client, client.Model()), nil
	}
	return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
}

// RetryPolicyFromConfig converts the retry section into a RetryPolicy.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = cfg.MaxRetries
	p.BaseDelay = config.Duration(cfg.BaseDelay, DefaultBaseDelay)
	p.MaxJitter = config.Duration(cfg.MaxJitter, DefaultMaxJitter)
	return p
}
