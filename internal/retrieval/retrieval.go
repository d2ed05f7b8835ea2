// Package retrieval finds historical events similar to a new crisis. It embeds
// the query text and asks a nearest-neighbour source for the closest stored
// events. It never writes.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nvandessel/polaris/internal/embedding"
	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
)

var (
	// ErrEmbeddingUnavailable wraps any failure of the embedding backend.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrSearchFailed wraps any failure of the nearest-neighbour search.
	ErrSearchFailed = errors.New("similarity search failed")

	ErrInvalidLimit = errors.New("limit must be positive")
	ErrEmptyText    = errors.New("event text is empty")
)

// NeighborSearcher returns up to limit stored events ordered by ascending
// cosine distance from vec.
type NeighborSearcher interface {
	NearestEvents(ctx context.Context, vec []float32, limit int) ([]models.Neighbor, error)
}

// Retriever embeds event text and looks up its nearest stored neighbours.
type Retriever struct {
	embedder embedding.Engine
	searcher NeighborSearcher
	logger   *slog.Logger
}

// New creates a Retriever. A nil logger uses slog.Default().
func New(embedder embedding.Engine, searcher NeighborSearcher, logger *slog.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		logger:   logging.OrDefault(logger),
	}
}

// FindSimilar returns up to limit events most similar to eventText, most
// similar first. Similarity is 1 - cosine distance rounded to 3 decimals.
// An empty store yields an empty, non-nil slice.
func (r *Retriever) FindSimilar(ctx context.Context, eventText string, limit int) ([]models.SimilarEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if strings.TrimSpace(eventText) == "" {
		return nil, ErrEmptyText
	}

	vec, err := r.embedder.Embed(ctx, eventText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	neighbors, err := r.searcher.NearestEvents(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	events := make([]models.SimilarEvent, len(neighbors))
	for i, n := range neighbors {
		events[i] = models.SimilarEvent{
			ID:         n.ID,
			Text:       n.Text,
			Similarity: models.SimilarityFromDistance(n.Distance),
		}
	}

	r.logger.Debug("retrieved similar events", "limit", limit, "found", len(events), "engine", r.embedder.Name())
	return events, nil
}
