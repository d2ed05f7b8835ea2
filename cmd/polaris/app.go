package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/polaris/internal/agent"
	"github.com/nvandessel/polaris/internal/config"
	"github.com/nvandessel/polaris/internal/embedding"
	"github.com/nvandessel/polaris/internal/llm"
	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/notify"
	"github.com/nvandessel/polaris/internal/pathutil"
	"github.com/nvandessel/polaris/internal/retrieval"
	"github.com/nvandessel/polaris/internal/seed"
	"github.com/nvandessel/polaris/internal/service"
	"github.com/nvandessel/polaris/internal/setup"
	"github.com/nvandessel/polaris/internal/simulation"
	"github.com/nvandessel/polaris/internal/store"
	"github.com/spf13/cobra"
)

// appOptions selects which components a command needs.
type appOptions struct {
	embedder  bool
	generator bool

	// publish connects the configured notifier. embeddedNATS additionally
	// allows starting an in-process server when no URL is configured.
	publish      bool
	embeddedNATS bool

	// failurePolicy overrides simulation.failure_policy when non-empty.
	failurePolicy string
}

// app holds the wired components for one command invocation.
type app struct {
	cfg       *config.PolarisConfig
	logger    *slog.Logger
	decisions *logging.DecisionLogger

	store     store.Store
	embedder  embedding.Engine
	generator llm.Generator

	coordinator *simulation.Coordinator
	publisher   notify.Publisher
	embedded    *notify.EmbeddedServer
	service     *service.Service
}

// loadConfig reads the config named by --config and applies the --memory flag.
func loadConfig(cmd *cobra.Command) (*config.PolarisConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if memory, _ := cmd.Flags().GetBool("memory"); memory {
		cfg.Database.Memory = true
	}
	if cfg.Embedding.Provider == "local" {
		applyLocalSetup(&cfg.Embedding, setup.Detect(config.Dir()))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyLocalSetup fills unset local embedding paths from an installation
// made by "polaris setup".
func applyLocalSetup(cfg *config.EmbeddingConfig, inst setup.Installation) {
	if cfg.LocalModelPath == "" {
		cfg.LocalModelPath = inst.ModelPath
	}
	if cfg.LocalLibPath == "" && os.Getenv("YZMA_LIB") == "" {
		cfg.LocalLibPath = inst.LibDir
	}
}

// newApp builds the components opts asks for. Callers must Close the app.
func newApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (_ *app, err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr),
		decisions: logging.NewDecisionLogger(cfg.Logging.Dir, cfg.Logging.Level),
		publisher: notify.NopPublisher{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.Memory {
		st := store.NewMemoryStore()
		st.SetLogger(a.logger)
		a.store = st
	} else {
		st, err := store.NewSQLiteStore(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening database %s: %w", pathutil.RedactPath(cfg.Database.Path), err)
		}
		st.SetLogger(a.logger)
		a.store = st
	}

	if opts.embedder || opts.generator {
		a.embedder, err = embedding.NewEngine(ctx, embedding.Config{
			Provider:         cfg.Embedding.Provider,
			APIKey:           cfg.Embedding.APIKey,
			BaseURL:          cfg.Embedding.BaseURL,
			Model:            cfg.Embedding.Model,
			Dimensions:       cfg.Embedding.Dimensions,
			Timeout:          cfg.Embedding.Timeout,
			LocalLibPath:     cfg.Embedding.LocalLibPath,
			LocalModelPath:   cfg.Embedding.LocalModelPath,
			LocalGPULayers:   cfg.Embedding.LocalGPULayers,
			LocalContextSize: cfg.Embedding.LocalContextSize,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedding engine: %w", err)
		}
	}

	if cfg.Database.Memory {
		if err := a.seedMemory(ctx); err != nil {
			return nil, err
		}
	}

	if !opts.generator {
		return a, nil
	}

	a.generator, err = llm.NewClient(llm.ClientConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	policyName := cfg.Simulation.FailurePolicy
	if opts.failurePolicy != "" {
		policyName = opts.failurePolicy
	}
	policy, err := simulation.ParseFailurePolicy(policyName)
	if err != nil {
		return nil, err
	}

	retriever := retrieval.New(a.embedder, a.store, a.logger)
	judge := agent.New(a.generator,
		agent.WithMaxTokens(cfg.LLM.MaxTokens),
		agent.WithLogger(a.logger),
		agent.WithDecisionLogger(a.decisions),
	)
	a.coordinator = simulation.New(retriever, a.store, judge, simulation.Options{
		SimilarLimit:   cfg.Simulation.SimilarLimit,
		FailurePolicy:  policy,
		AgentTimeout:   cfg.Simulation.AgentTimeout,
		MaxConcurrency: cfg.Simulation.MaxConcurrency,
	}, a.logger)

	if opts.publish {
		if err := a.connectPublisher(opts.embeddedNATS); err != nil {
			return nil, err
		}
	}

	a.service = service.New(a.store, a.embedder, a.coordinator, a.publisher, a.logger)
	return a, nil
}

// seedMemory loads the default leaders, and the historical events when an
// embedder is available, into a fresh in-memory store.
func (a *app) seedMemory(ctx context.Context) error {
	seeder := seed.NewSeeder(a.store, a.embedder, a.logger)
	if _, err := seeder.SeedLeaders(ctx); err != nil {
		return fmt.Errorf("seeding leaders: %w", err)
	}
	if a.embedder == nil {
		return nil
	}
	if _, err := seeder.SeedEvents(ctx); err != nil {
		return fmt.Errorf("seeding events: %w", err)
	}
	return nil
}

func (a *app) connectPublisher(allowEmbedded bool) error {
	url := a.cfg.Notify.NATSURL
	if url == "" && allowEmbedded && a.cfg.Notify.EmbeddedPort != 0 {
		srv, err := notify.StartEmbedded(a.cfg.Notify.EmbeddedPort)
		if err != nil {
			return err
		}
		a.embedded = srv
		url = srv.ClientURL()
		a.logger.Info("embedded nats server started", "url", url)
	}
	if url == "" {
		return nil
	}

	pub, err := notify.NewNATSPublisher(url, a.cfg.Notify.Subject, a.logger)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	a.publisher = pub
	return nil
}

// Close releases every component in reverse order of construction.
func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.embedded != nil {
		a.embedded.Shutdown()
	}
	if closer, ok := a.embedder.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	a.decisions.Close()
	return errors.Join(errs...)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
