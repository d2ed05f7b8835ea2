// Package store persists leader profiles, embedded events and simulation
// results. It is the nearest-neighbour source the retriever searches and the
// profile source the coordinator loads from.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/vectorsearch"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDimensionMismatch is returned by NearestEvents when no stored embedding
// has the query's vector length, typically after switching embedding models.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// LeaderStore holds leader profiles.
type LeaderStore interface {
	// ListLeaders returns every profile ordered by name.
	ListLeaders(ctx context.Context) ([]models.LeaderProfile, error)

	GetLeaderByName(ctx context.Context, name string) (models.LeaderProfile, error)

	// UpsertLeader inserts p unless a profile with the same name exists, in
	// which case the stored profile is returned unchanged with created=false.
	UpsertLeader(ctx context.Context, p models.LeaderProfile) (stored models.LeaderProfile, created bool, err error)
}

// EventStore holds crisis events and their embeddings.
type EventStore interface {
	InsertEvent(ctx context.Context, text string, embedding []float32) (models.StoredEvent, error)
	CountEvents(ctx context.Context) (int, error)

	// NearestEvents returns up to limit events ordered by ascending cosine
	// distance from embedding. Events with a different vector length are
	// skipped with a warning; if every stored event is skipped the error
	// wraps ErrDimensionMismatch.
	NearestEvents(ctx context.Context, embedding []float32, limit int) ([]models.Neighbor, error)
}

// SimulationStore holds simulation runs and per-leader results.
type SimulationStore interface {
	CreateSimulation(ctx context.Context, eventID string) (id string, createdAt time.Time, err error)

	// SaveResults records each judgment against the leader whose name it carries.
	SaveResults(ctx context.Context, simulationID string, judgments []models.Judgment) error

	// History returns the latest limit simulations, newest first, with the
	// average escalation rounded to 2 decimal places. Unavailable
	// placeholders do not count toward the average.
	History(ctx context.Context, limit int) ([]models.SimulationSummary, error)

	// GetSimulation returns a stored run with its judgments in saved order.
	GetSimulation(ctx context.Context, id string) (models.SimulationResponse, error)
}

// Store is the full persistence surface.
type Store interface {
	LeaderStore
	EventStore
	SimulationStore
	Close() error
}

// timeFormat is fixed-width so stored timestamps sort lexicographically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// rankNearest ranks candidates against embedding and reports events whose
// vector length does not match.
func rankNearest(logger *slog.Logger, embedding []float32, candidates []models.StoredEvent, limit int) ([]models.Neighbor, error) {
	neighbors, skipped := vectorsearch.Nearest(embedding, candidates, limit)
	if skipped == 0 {
		return neighbors, nil
	}
	if skipped == len(candidates) {
		return nil, fmt.Errorf("%w: none of %d stored events have %d dimensions",
			ErrDimensionMismatch, skipped, len(embedding))
	}
	logger.Warn("skipped events with mismatched embedding dimension",
		"skipped", skipped, "stored", len(candidates), "dimensions", len(embedding))
	return neighbors, nil
}
