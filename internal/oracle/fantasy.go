package oracle

import (
	"context"
	"fmt"

	"charm.land/fantasy"
)

// FantasyClient implements Client on top of a fantasy.Provider.
type FantasyClient struct {
	provider fantasy.Provider
	model    string
}

// FantasyConfig configures a FantasyClient.
type FantasyConfig struct {
	// Provider is the fantasy provider to use.
	Provider fantasy.Provider

	// Model is the model identifier passed to the provider.
	Model string
}

// NewFantasyClient creates a provider-backed oracle client.
func NewFantasyClient(cfg FantasyConfig) (*FantasyClient, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &FantasyClient{provider: cfg.Provider, model: cfg.Model}, nil
}

// Query implements Client.
func (c *FantasyClient) Query(ctx context.Context, prompt string, opts Options) (string, error) {
	lm, err := c.provider.LanguageModel(ctx, c.model)
	if err != nil {
		return "", fmt.Errorf("get language model: %w", err)
	}

	maxTokens := opts.maxTokens()
	call := fantasy.Call{
		Prompt:          fantasy.Prompt{fantasy.NewUserMessage(prompt)},
		MaxOutputTokens: &maxTokens,
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		call.Temperature = &temp
	}

	resp, err := lm.Generate(ctx, call)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	text := resp.Content.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return text, nil
}

// Model returns the configured model name.
func (c *FantasyClient) Model() string {
	return c.model
}
