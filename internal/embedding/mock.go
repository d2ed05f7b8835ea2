package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/nvandessel/polaris/internal/vecmath"
)

// MockEngine is a deterministic Engine for tests and offline runs. It hashes
// each lower-cased word into a bucket of a fixed-width vector and normalizes
// the result, so texts sharing vocabulary land close together.
type MockEngine struct {
	mu         sync.Mutex
	dimensions int
	err        error

	EmbedCalls int
	BatchCalls int
}

// NewMockEngine creates a MockEngine. Non-positive dimensions default to 64.
func NewMockEngine(dimensions int) *MockEngine {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockEngine{dimensions: dimensions}
}

// WithError makes every subsequent call fail with err.
func (m *MockEngine) WithError(err error) *MockEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Embed implements Engine.Embed.
func (m *MockEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.EmbedCalls++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.vector(text), nil
}

// EmbedBatch implements Engine.EmbedBatch.
func (m *MockEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.BatchCalls++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = m.vector(text)
	}
	return vecs, nil
}

// Dimensions implements Engine.Dimensions.
func (m *MockEngine) Dimensions() int { return m.dimensions }

// Name implements Engine.Name.
func (m *MockEngine) Name() string { return "mock:bag-of-words" }

func (m *MockEngine) vector(text string) []float32 {
	vec := make([]float32, m.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(m.dimensions)]++
	}
	vecmath.Normalize(vec)
	return vec
}
