// Package seed loads the built-in leader archetypes and historical events.
// Seeding is safe to repeat.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvandessel/polaris/internal/embedding"
	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
)

// Store is the persistence the seeder writes through.
type Store interface {
	UpsertLeader(ctx context.Context, p models.LeaderProfile) (models.LeaderProfile, bool, error)
	InsertEvent(ctx context.Context, text string, embedding []float32) (models.StoredEvent, error)
	CountEvents(ctx context.Context) (int, error)
}

// Result summarizes a seeding pass.
type Result struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
	Total   int      `json:"total"`
}

// Seeder writes seed data.
type Seeder struct {
	store    Store
	embedder embedding.Engine
	logger   *slog.Logger
}

// NewSeeder creates a Seeder. embedder may be nil when only leaders are seeded.
func NewSeeder(store Store, embedder embedding.Engine, logger *slog.Logger) *Seeder {
	return &Seeder{store: store, embedder: embedder, logger: logging.OrDefault(logger)}
}

// SeedLeaders inserts each default leader whose name is not yet stored.
// Added and Skipped hold leader names.
func (s *Seeder) SeedLeaders(ctx context.Context) (Result, error) {
	leaders := DefaultLeaders()
	res := Result{Added: []string{}, Skipped: []string{}, Total: len(leaders)}

	for _, p := range leaders {
		_, created, err := s.store.UpsertLeader(ctx, p)
		if err != nil {
			return res, fmt.Errorf("seeding leader %q: %w", p.Name, err)
		}
		if created {
			s.logger.Info("inserted leader", "name", p.Name)
			res.Added = append(res.Added, p.Name)
		} else {
			s.logger.Debug("leader exists, skipping", "name", p.Name)
			res.Skipped = append(res.Skipped, p.Name)
		}
	}
	return res, nil
}

// SeedEvents embeds and stores the historical events. It does nothing when
// the store already holds at least as many events as the seed set. All
// events are embedded in one batch call. Added holds the new event ids.
func (s *Seeder) SeedEvents(ctx context.Context) (Result, error) {
	events := HistoricalEvents()
	res := Result{Added: []string{}, Skipped: []string{}, Total: len(events)}

	count, err := s.store.CountEvents(ctx)
	if err != nil {
		return res, fmt.Errorf("counting events: %w", err)
	}
	if count >= len(events) {
		s.logger.Info("events already seeded, skipping", "existing", count)
		res.Skipped = append(res.Skipped, events...)
		return res, nil
	}
	if s.embedder == nil {
		return res, fmt.Errorf("seeding events: no embedding engine configured")
	}

	s.logger.Info("generating embeddings", "events", len(events), "engine", s.embedder.Name())
	vecs, err := s.embedder.EmbedBatch(ctx, events)
	if err != nil {
		return res, fmt.Errorf("embedding seed events: %w", err)
	}
	if len(vecs) != len(events) {
		return res, fmt.Errorf("embedding seed events: got %d vectors for %d events", len(vecs), len(events))
	}

	for i, text := range events {
		ev, err := s.store.InsertEvent(ctx, text, vecs[i])
		if err != nil {
			return res, fmt.Errorf("inserting seed event %d: %w", i, err)
		}
		res.Added = append(res.Added, ev.ID)
	}
	s.logger.Info("seeded historical events", "count", len(res.Added))
	return res, nil
}

// SeedAll seeds leaders, then events.
func (s *Seeder) SeedAll(ctx context.Context) (leaders, events Result, err error) {
	if leaders, err = s.SeedLeaders(ctx); err != nil {
		return leaders, events, err
	}
	events, err = s.SeedEvents(ctx)
	return leaders, events, err
}
