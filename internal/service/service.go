// Package service ties the simulation engine to storage and notifications.
// It is the single entry point used by the HTTP API, the MCP server and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/embedding"
	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/notify"
	"github.com/nvandessel/polaris/internal/retrieval"
	"github.com/nvandessel/polaris/internal/sanitize"
	"github.com/nvandessel/polaris/internal/store"
)

// ErrInvalidEvent is returned when event text fails validation.
var ErrInvalidEvent = errors.New("invalid event text")

// Runner executes one simulation.
type Runner interface {
	Run(ctx context.Context, eventText string) ([]models.Judgment, error)
}

// Service runs and records simulations.
type Service struct {
	store     store.Store
	embedder  embedding.Engine
	runner    Runner
	publisher notify.Publisher
	logger    *slog.Logger
}

// New creates a Service. A nil publisher disables notifications.
func New(st store.Store, embedder embedding.Engine, runner Runner, publisher notify.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Service{
		store:     st,
		embedder:  embedder,
		runner:    runner,
		publisher: publisher,
		logger:    logging.OrDefault(logger),
	}
}

// ValidateEventText strips prompt markup from text with sanitize.EventText
// and checks the cleaned length in characters.
func ValidateEventText(text string) (string, error) {
	text = sanitize.EventText(text)
	n := utf8.RuneCountInString(text)
	if n < constants.MinEventTextLen || n > constants.MaxEventTextLen {
		return "", fmt.Errorf("%w: must be %d to %d characters, got %d",
			ErrInvalidEvent, constants.MinEventTextLen, constants.MaxEventTextLen, n)
	}
	return text, nil
}

// Simulate stores the event, runs every leader against it and records the
// judgments. The event is embedded and stored before the run, so it is
// visible to its own similarity search.
func (s *Service) Simulate(ctx context.Context, text string) (models.SimulationResponse, error) {
	text, err := ValidateEventText(text)
	if err != nil {
		return models.SimulationResponse{}, err
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return models.SimulationResponse{}, fmt.Errorf("%w: %w", retrieval.ErrEmbeddingUnavailable, err)
	}

	event, err := s.store.InsertEvent(ctx, text, vec)
	if err != nil {
		return models.SimulationResponse{}, fmt.Errorf("storing event: %w", err)
	}

	simID, createdAt, err := s.store.CreateSimulation(ctx, event.ID)
	if err != nil {
		return models.SimulationResponse{}, fmt.Errorf("creating simulation: %w", err)
	}

	results, err := s.runner.Run(ctx, text)
	if err != nil {
		return models.SimulationResponse{}, fmt.Errorf("simulation %s: %w", simID, err)
	}

	if err := s.store.SaveResults(ctx, simID, results); err != nil {
		return models.SimulationResponse{}, fmt.Errorf("saving results for %s: %w", simID, err)
	}

	resp := models.SimulationResponse{
		SimulationID: simID,
		EventText:    text,
		CreatedAt:    createdAt,
		Results:      results,
	}

	if err := s.publisher.Publish(ctx, notify.NewSimulationCompleted(resp)); err != nil {
		s.logger.Warn("failed to publish simulation", "simulation_id", simID, "error", err)
	}

	s.logger.Info("simulation stored", "simulation_id", simID, "leaders", len(results))
	return resp, nil
}

// Leaders returns every leader profile.
func (s *Service) Leaders(ctx context.Context) ([]models.LeaderProfile, error) {
	leaders, err := s.store.ListLeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing leaders: %w", err)
	}
	return leaders, nil
}

// History returns the most recent simulations, newest first. A limit <= 0
// uses the default of 20.
func (s *Service) History(ctx context.Context, limit int) ([]models.SimulationSummary, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	history, err := s.store.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return history, nil
}

// Simulation returns a stored simulation by id.
func (s *Service) Simulation(ctx context.Context, id string) (models.SimulationResponse, error) {
	return s.store.GetSimulation(ctx, id)
}

// Health reports whether the store answers queries.
func (s *Service) Health(ctx context.Context) error {
	_, err := s.store.CountEvents(ctx)
	return err
}
