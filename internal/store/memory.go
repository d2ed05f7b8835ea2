package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
)

// MemoryStore implements Store in process memory, for tests and --memory runs.
type MemoryStore struct {
	mu          sync.RWMutex
	leaders     map[string]models.LeaderProfile // by name
	events      []models.StoredEvent
	simulations []memorySimulation
	now         func() time.Time
	logger      *slog.Logger
}

type memorySimulation struct {
	id        string
	eventID   string
	createdAt time.Time
	results   []models.Judgment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leaders: make(map[string]models.LeaderProfile),
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// SetLogger replaces the logger used for store warnings. Nil restores
// slog.Default().
func (s *MemoryStore) SetLogger(l *slog.Logger) {
	s.logger = logging.OrDefault(l)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// ListLeaders returns every profile ordered by name.
func (s *MemoryStore) ListLeaders(ctx context.Context) ([]models.LeaderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leaders := make([]models.LeaderProfile, 0, len(s.leaders))
	for _, p := range s.leaders {
		leaders = append(leaders, p)
	}
	sort.Slice(leaders, func(i, j int) bool { return leaders[i].Name < leaders[j].Name })
	return leaders, nil
}

// GetLeaderByName returns the profile named name, or ErrNotFound.
func (s *MemoryStore) GetLeaderByName(ctx context.Context, name string) (models.LeaderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.leaders[name]
	if !ok {
		return models.LeaderProfile{}, fmt.Errorf("leader %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// UpsertLeader inserts p unless its name is already taken.
func (s *MemoryStore) UpsertLeader(ctx context.Context, p models.LeaderProfile) (models.LeaderProfile, bool, error) {
	if err := p.Validate(); err != nil {
		return models.LeaderProfile{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.leaders[p.Name]; ok {
		return existing, false, nil
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.leaders[p.Name] = p
	return p, true, nil
}

// InsertEvent stores an event and a copy of its embedding.
func (s *MemoryStore) InsertEvent(ctx context.Context, text string, embedding []float32) (models.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	ev := models.StoredEvent{
		ID:        uuid.New().String(),
		Text:      text,
		Embedding: vec,
		CreatedAt: s.now().UTC(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

// CountEvents returns the number of stored events.
func (s *MemoryStore) CountEvents(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// NearestEvents ranks every stored event by cosine distance.
func (s *MemoryStore) NearestEvents(ctx context.Context, embedding []float32, limit int) ([]models.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rankNearest(s.logger, embedding, s.events, limit)
}

// CreateSimulation records a new run for eventID.
func (s *MemoryStore) CreateSimulation(ctx context.Context, eventID string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eventIndex(eventID) < 0 {
		return "", time.Time{}, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	sim := memorySimulation{
		id:        uuid.New().String(),
		eventID:   eventID,
		createdAt: s.now().UTC(),
	}
	s.simulations = append(s.simulations, sim)
	return sim.id, sim.createdAt, nil
}

// SaveResults appends judgments to a run. Every leader must exist; nothing is
// written if one does not.
func (s *MemoryStore) SaveResults(ctx context.Context, simulationID string, judgments []models.Judgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.simulationIndex(simulationID)
	if idx < 0 {
		return fmt.Errorf("simulation %s: %w", simulationID, ErrNotFound)
	}
	for _, j := range judgments {
		if _, ok := s.leaders[j.Leader]; !ok {
			return fmt.Errorf("leader %q: %w", j.Leader, ErrNotFound)
		}
	}
	for _, j := range judgments {
		j.SimilarEvents = append([]string{}, j.SimilarEvents...)
		s.simulations[idx].results = append(s.simulations[idx].results, j)
	}
	return nil
}

// History returns the latest simulations, newest first. A non-positive
// limit returns all of them.
func (s *MemoryStore) History(ctx context.Context, limit int) ([]models.SimulationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = len(s.simulations)
	}
	history := make([]models.SimulationSummary, 0, min(limit, len(s.simulations)))
	for i := len(s.simulations) - 1; i >= 0 && len(history) < limit; i-- {
		sim := s.simulations[i]
		var sum float64
		var n int
		for _, j := range sim.results {
			if j.Outcome == models.OutcomeUnavailable {
				continue
			}
			sum += j.EscalationScore
			n++
		}
		avg := 0.0
		if n > 0 {
			avg = models.Round(sum/float64(n), 2)
		}
		history = append(history, models.SimulationSummary{
			SimulationID:  sim.id,
			EventText:     s.events[s.eventIndex(sim.eventID)].Text,
			CreatedAt:     sim.createdAt,
			AvgEscalation: avg,
		})
	}
	return history, nil
}

// GetSimulation returns a stored run and its judgments.
func (s *MemoryStore) GetSimulation(ctx context.Context, id string) (models.SimulationResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.simulationIndex(id)
	if idx < 0 {
		return models.SimulationResponse{}, fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	sim := s.simulations[idx]
	results := make([]models.Judgment, len(sim.results))
	copy(results, sim.results)
	return models.SimulationResponse{
		SimulationID: sim.id,
		EventText:    s.events[s.eventIndex(sim.eventID)].Text,
		CreatedAt:    sim.createdAt,
		Results:      results,
	}, nil
}

func (s *MemoryStore) eventIndex(id string) int {
	for i, e := range s.events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) simulationIndex(id string) int {
	for i, sim := range s.simulations {
		if sim.id == id {
			return i
		}
	}
	return -1
}
