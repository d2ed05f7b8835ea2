// Package llm provides the text generation backends persona agents call.
// It supports Anthropic, OpenAI and OpenAI-compatible endpoints (such as
// ollama), plus a mock for tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when a client lacks the credentials or
// configuration it needs to make a request.
var ErrUnavailable = errors.New("llm client not available")

// Request is one generation call: a system prompt, a single user turn, and
// an output token budget.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Generator produces a completion for a request. Implementations must be
// safe for concurrent use: one Generator is shared by every agent in a run.
type Generator interface {
	// Generate returns the model's text output. Transport, auth and quota
	// failures are returned as errors; the content itself is never validated.
	Generate(ctx context.Context, req Request) (string, error)

	// Available returns true if the client is configured and ready to handle requests.
	Available() bool
}

// ClientConfig configures an LLM client.
type ClientConfig struct {
	// Provider identifies the backend: "anthropic", "openai", "ollama" or "mock".
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the provider (not used for ollama or mock).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the model identifier to use for requests.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Timeout is the maximum duration to wait for a response.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultConfig returns a ClientConfig with sensible defaults.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Provider: "anthropic",
		Model:    anthropicDefaultModel,
		Timeout:  60 * time.Second,
	}
}

// NewClient builds the Generator for config.Provider.
func NewClient(config ClientConfig) (Generator, error) {
	var g Generator
	switch config.Provider {
	case "anthropic":
		g = NewAnthropicClient(config)
	case "openai":
		g = NewOpenAIClient(config)
	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434/v1"
		}
		if config.APIKey == "" {
			config.APIKey = "ollama"
		}
		g = NewOpenAIClient(config)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}

	if !g.Available() {
		return nil, fmt.Errorf("%w: %s provider needs an API key", ErrUnavailable, config.Provider)
	}
	return g, nil
}
