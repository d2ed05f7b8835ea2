// Package embedding turns event text into dense vectors for nearest-neighbour
// retrieval. Backends: OpenAI (and compatible), Google Gemini, a local GGUF
// model (build tag llamacpp), and a deterministic mock.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Engine generates vector embeddings for text. Every vector an Engine
// returns has Dimensions() entries.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name, e.g. "openai:text-embedding-3-small".
	Name() string
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "openai", "gemini", "local" or "mock".
	Provider string

	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration

	// Local model settings. An empty LocalLibPath falls back to YZMA_LIB.
	LocalLibPath     string
	LocalModelPath   string
	LocalGPULayers   int
	LocalContextSize int
}

// NewEngine creates an embedding engine based on configuration.
func NewEngine(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "openai":
		e, err := NewOpenAIEngine(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "gemini":
		e, err := NewGenAIEngine(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "local":
		e, err := NewLocalEngine(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "mock":
		return NewMockEngine(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use openai, gemini, local or mock)", cfg.Provider)
	}
}

// checkDimensions rejects vectors whose length differs from want.
func checkDimensions(vecs [][]float32, want int) error {
	for i, v := range vecs {
		if len(v) != want {
			return fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), want)
		}
	}
	return nil
}
