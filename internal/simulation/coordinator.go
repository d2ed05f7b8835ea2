// Package simulation coordinates one crisis run: it retrieves historical
// context once, fans the event out to every leader persona concurrently and
// collects their judgments.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/polaris/internal/agent"
	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
)

// ErrNoProfiles is returned when the profile source has no leaders to dispatch.
var ErrNoProfiles = errors.New("no leader profiles available")

// SimilarFinder retrieves the events most similar to a crisis.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, eventText string, limit int) ([]models.SimilarEvent, error)
}

// ProfileSource lists the leader profiles to dispatch.
type ProfileSource interface {
	ListLeaders(ctx context.Context) ([]models.LeaderProfile, error)
}

// Judge produces one leader's judgment.
type Judge interface {
	Judge(ctx context.Context, profile models.LeaderProfile, eventText string, similar []models.SimilarEvent) (models.Judgment, error)
}

// FailurePolicy decides what a generation failure does to the rest of the run.
type FailurePolicy string

const (
	// FailFast cancels the remaining agents and fails the run.
	FailFast FailurePolicy = "fail_fast"

	// Isolate records an unavailable judgment for the failed leader and lets
	// the others finish.
	Isolate FailurePolicy = "isolate"
)

// ParseFailurePolicy maps a config value to a policy. Empty means FailFast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailFast:
		return FailFast, nil
	case Isolate:
		return Isolate, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (use %q or %q)", s, FailFast, Isolate)
	}
}

// Options tunes a Coordinator.
type Options struct {
	SimilarLimit  int
	FailurePolicy FailurePolicy

	// AgentTimeout bounds each generation call. Zero means no per-agent limit.
	AgentTimeout time.Duration

	// MaxConcurrency caps in-flight agents. Zero means one goroutine per leader.
	MaxConcurrency int
}

// DefaultOptions returns the reference behaviour: three context events,
// fail fast, unbounded fan-out.
func DefaultOptions() Options {
	return Options{
		SimilarLimit:  constants.DefaultSimilarLimit,
		FailurePolicy: FailFast,
	}
}

// Coordinator runs simulations. It holds no per-run state and is safe for
// concurrent use.
type Coordinator struct {
	finder   SimilarFinder
	profiles ProfileSource
	judge    Judge
	opts     Options
	logger   *slog.Logger
}

// New creates a Coordinator. Unset options fall back to DefaultOptions.
func New(finder SimilarFinder, profiles ProfileSource, judge Judge, opts Options, logger *slog.Logger) *Coordinator {
	if opts.SimilarLimit <= 0 {
		opts.SimilarLimit = constants.DefaultSimilarLimit
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = FailFast
	}
	return &Coordinator{
		finder:   finder,
		profiles: profiles,
		judge:    judge,
		opts:     opts,
		logger:   logging.OrDefault(logger),
	}
}

// Options returns the effective options.
func (c *Coordinator) Options() Options {
	return c.opts
}

// Run simulates every leader's reaction to eventText. Context is retrieved
// once and shared read-only by all agents. Judgments are returned in
// completion order, one per dispatched profile.
//
// Under FailFast the first generation failure cancels the other agents and
// Run returns that error with no judgments. Under Isolate only cancellation
// of ctx itself fails the run.
func (c *Coordinator) Run(ctx context.Context, eventText string) ([]models.Judgment, error) {
	start := time.Now()

	similar, err := c.finder.FindSimilar(ctx, eventText, c.opts.SimilarLimit)
	if err != nil {
		return nil, fmt.Errorf("retrieving similar events: %w", err)
	}

	profiles, err := c.profiles.ListLeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading leader profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}

	c.logger.Debug("dispatching agents", "leaders", len(profiles), "context_events", len(similar), "policy", c.opts.FailurePolicy)

	g, gctx := errgroup.WithContext(ctx)
	if c.opts.MaxConcurrency > 0 {
		g.SetLimit(c.opts.MaxConcurrency)
	}

	var mu sync.Mutex
	results := make([]models.Judgment, 0, len(profiles))

	for _, profile := range profiles {
		g.Go(func() error {
			j, err := c.judgeOne(gctx, profile, eventText, similar)
			if err != nil {
				if c.opts.FailurePolicy != Isolate || ctx.Err() != nil {
					return err
				}
				c.logger.Warn("agent unavailable", "leader", profile.Name, "error", err)
				j = agent.Unavailable(profile, similar, err)
			}

			mu.Lock()
			results = append(results, j)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Warn("simulation failed", "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	c.logger.Info("simulation complete", "leaders", len(results), "elapsed", time.Since(start))
	return results, nil
}

func (c *Coordinator) judgeOne(ctx context.Context, profile models.LeaderProfile, eventText string, similar []models.SimilarEvent) (models.Judgment, error) {
	// A slot may open after a sibling already failed the group.
	if err := ctx.Err(); err != nil {
		return models.Judgment{}, fmt.Errorf("%w for %s: %w", agent.ErrGenerationFailed, profile.Name, err)
	}
	if c.opts.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.AgentTimeout)
		defer cancel()
	}
	return c.judge.Judge(ctx, profile, eventText, similar)
}

// SortByProfiles returns a copy of judgments ordered like profiles. Leaders
// not present in profiles keep their relative order at the end.
func SortByProfiles(judgments []models.Judgment, profiles []models.LeaderProfile) []models.Judgment {
	rank := make(map[string]int, len(profiles))
	for i, p := range profiles {
		rank[p.Name] = i
	}
	pos := func(name string) int {
		if r, ok := rank[name]; ok {
			return r
		}
		return len(profiles)
	}

	sorted := make([]models.Judgment, len(judgments))
	copy(sorted, judgments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return pos(sorted[i].Leader) < pos(sorted[j].Leader)
	})
	return sorted
}
