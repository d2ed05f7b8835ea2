// Package agent runs one leader persona against a crisis event: it renders
// the persona prompt, makes a single generation call and turns the reply
// into a Judgment.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/llm"
	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
)

// ErrGenerationFailed wraps any error from the generation backend. It is the
// only error Judge returns; malformed output is handled by ParseJudgment.
var ErrGenerationFailed = errors.New("generation failed")

// Agent produces judgments from a language model.
type Agent struct {
	generator llm.Generator
	maxTokens int
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxTokens overrides the per-call token budget. Values <= 0 are ignored.
func WithMaxTokens(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithDecisionLogger records every judgment to the JSONL decision trace.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(a *Agent) { a.decisions = dl }
}

// New creates an Agent backed by generator.
func New(generator llm.Generator, opts ...Option) *Agent {
	a := &Agent{
		generator: generator,
		maxTokens: constants.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrDefault(a.logger)
	return a
}

// Judge asks the model how profile would react to eventText given the
// retrieved context. The returned judgment has every field populated and a
// score within [0,10]. An error is returned only when generation fails.
func (a *Agent) Judge(ctx context.Context, profile models.LeaderProfile, eventText string, similar []models.SimilarEvent) (models.Judgment, error) {
	system := SystemPrompt(profile, similar)
	start := time.Now()

	raw, err := a.generator.Generate(ctx, llm.Request{
		System:    system,
		User:      UserMessage(eventText),
		MaxTokens: a.maxTokens,
	})
	latency := time.Since(start)
	if err != nil {
		a.logger.Warn("generation failed", "leader", profile.Name, "latency", latency, "error", err)
		a.decisions.LogJudgment(logging.JudgmentEvent{
			Leader:  profile.Name,
			Outcome: string(models.OutcomeUnavailable),
			Latency: latency,
			Prompt:  system,
			Err:     err,
		})
		return models.Judgment{}, fmt.Errorf("%w for %s: %w", ErrGenerationFailed, profile.Name, err)
	}

	parsed := ParseJudgment(raw)
	j := models.Judgment{
		Leader:          profile.Name,
		EscalationScore: models.ClampEscalation(parsed.EscalationScore),
		Reaction:        parsed.Reaction,
		Rationale:       parsed.Rationale,
		SimilarEvents:   models.EventTexts(similar),
		Outcome:         parsed.Outcome,
	}

	if parsed.Outcome == models.OutcomeFallback {
		a.logger.Warn("unparseable model output, using fallback judgment", "leader", profile.Name)
	}
	a.logger.Debug("judgment", "leader", j.Leader, "score", j.EscalationScore, "outcome", j.Outcome, "latency", latency)
	a.decisions.LogJudgment(logging.JudgmentEvent{
		Leader:   j.Leader,
		Outcome:  string(j.Outcome),
		Score:    j.EscalationScore,
		Latency:  latency,
		Prompt:   system,
		Response: raw,
	})

	return j, nil
}

// Unavailable builds the placeholder judgment used when a leader's generation
// failed and the run isolates failures.
func Unavailable(profile models.LeaderProfile, similar []models.SimilarEvent, err error) models.Judgment {
	j := models.Judgment{
		Leader:          profile.Name,
		EscalationScore: constants.NeutralEscalationScore,
		Reaction:        constants.UnavailableReaction,
		Rationale:       constants.DefaultRationale,
		SimilarEvents:   models.EventTexts(similar),
		Outcome:         models.OutcomeUnavailable,
	}
	if err != nil {
		j.Error = err.Error()
	}
	return j
}
