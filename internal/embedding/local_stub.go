//go:build !llamacpp

package embedding

import (
	"context"
	"errors"
)

// ErrLocalUnavailable is returned by the local engine in builds without the llamacpp tag.
var ErrLocalUnavailable = errors.New("local embeddings not available: build with -tags llamacpp")

// LocalEngine is a stub used when the llamacpp build tag is not set.
type LocalEngine struct{}

// NewLocalEngine always fails in stub builds.
func NewLocalEngine(Config) (*LocalEngine, error) {
	return nil, ErrLocalUnavailable
}

func (e *LocalEngine) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrLocalUnavailable
}

func (e *LocalEngine) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrLocalUnavailable
}

func (e *LocalEngine) Dimensions() int { return 0 }
func (e *LocalEngine) Name() string    { return "local:unavailable" }
func (e *LocalEngine) Close() error    { return nil }
