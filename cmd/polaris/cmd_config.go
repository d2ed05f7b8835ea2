package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nvandessel/polaris/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage polaris configuration",
		Long: `View and modify polaris configuration settings.

Configuration is stored in ~/.polaris/config.yaml unless --config is given.
Environment variables (POLARIS_*, ANTHROPIC_API_KEY, OPENAI_API_KEY,
GEMINI_API_KEY) override the file at load time.

Examples:
  polaris config list                             # Show effective settings
  polaris config get simulation.failure_policy    # Get a specific setting
  polaris config set simulation.failure_policy isolate
  polaris config set llm.api_key '${ANTHROPIC_API_KEY}'`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)
	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List effective configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path, _ := cmd.Flags().GetString("config")

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// API keys never leave the process unredacted.
			redacted := *cfg
			redacted.LLM.APIKey = cfg.LLM.RedactedAPIKey()
			redacted.Embedding.APIKey = cfg.Embedding.RedactedAPIKey()

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(redacted)
			}
			printConfig(out, &redacted)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path, _ := cmd.Flags().GetString("config")
			key := args[0]

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path := configFilePath(cmd)
			// Read the file alone so environment overrides are not persisted.
			cfg, err := config.LoadFromFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				cfg, err = config.Default(), nil
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := saveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", key, path)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.PolarisConfig) {
	fmt.Fprintln(w, "LLM:")
	fmt.Fprintf(w, "  llm.provider:                  %s\n", cfg.LLM.Provider)
	fmt.Fprintf(w, "  llm.model:                     %s\n", cfg.LLM.Model)
	fmt.Fprintf(w, "  llm.api_key:                   %s\n", valueOrDefault(cfg.LLM.APIKey, "(not set)"))
	fmt.Fprintf(w, "  llm.base_url:                  %s\n", valueOrDefault(cfg.LLM.BaseURL, "(default)"))
	fmt.Fprintf(w, "  llm.max_tokens:                %d\n", cfg.LLM.MaxTokens)
	fmt.Fprintf(w, "  llm.timeout:                   %v\n", cfg.LLM.Timeout)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Embedding:")
	fmt.Fprintf(w, "  embedding.provider:            %s\n", cfg.Embedding.Provider)
	fmt.Fprintf(w, "  embedding.model:               %s\n", cfg.Embedding.Model)
	fmt.Fprintf(w, "  embedding.api_key:             %s\n", valueOrDefault(cfg.Embedding.APIKey, "(not set)"))
	fmt.Fprintf(w, "  embedding.dimensions:          %d\n", cfg.Embedding.Dimensions)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Storage:")
	fmt.Fprintf(w, "  database.path:                 %s\n", cfg.Database.Path)
	fmt.Fprintf(w, "  database.memory:               %v\n", cfg.Database.Memory)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Simulation:")
	fmt.Fprintf(w, "  simulation.similar_limit:      %d\n", cfg.Simulation.SimilarLimit)
	fmt.Fprintf(w, "  simulation.failure_policy:     %s\n", cfg.Simulation.FailurePolicy)
	fmt.Fprintf(w, "  simulation.agent_timeout:      %v\n", cfg.Simulation.AgentTimeout)
	fmt.Fprintf(w, "  simulation.max_concurrency:    %d\n", cfg.Simulation.MaxConcurrency)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintf(w, "  server.addr:                   %s\n", cfg.Server.Addr)
	fmt.Fprintf(w, "  server.cors_origins:           %v\n", cfg.Server.CORSOrigins)
	fmt.Fprintf(w, "  server.simulate_rate:          %g/min (burst %d)\n", cfg.Server.SimulateRate, cfg.Server.SimulateBurst)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notify:")
	fmt.Fprintf(w, "  notify.nats_url:               %s\n", valueOrDefault(cfg.Notify.NATSURL, "(disabled)"))
	fmt.Fprintf(w, "  notify.subject:                %s\n", cfg.Notify.Subject)
	fmt.Fprintf(w, "  notify.embedded_port:          %d\n", cfg.Notify.EmbeddedPort)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Logging:")
	fmt.Fprintf(w, "  logging.level:                 %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  logging.format:                %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "  logging.dir:                   %s\n", cfg.Logging.Dir)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.PolarisConfig, key string) (any, bool) {
	switch key {
	case "llm.provider":
		return cfg.LLM.Provider, true
	case "llm.model":
		return cfg.LLM.Model, true
	case "llm.api_key":
		return cfg.LLM.RedactedAPIKey(), true
	case "llm.base_url":
		return cfg.LLM.BaseURL, true
	case "llm.max_tokens":
		return cfg.LLM.MaxTokens, true
	case "llm.timeout":
		return cfg.LLM.Timeout.String(), true
	case "embedding.provider":
		return cfg.Embedding.Provider, true
	case "embedding.model":
		return cfg.Embedding.Model, true
	case "embedding.api_key":
		return cfg.Embedding.RedactedAPIKey(), true
	case "embedding.dimensions":
		return cfg.Embedding.Dimensions, true
	case "database.path":
		return cfg.Database.Path, true
	case "database.memory":
		return cfg.Database.Memory, true
	case "simulation.similar_limit":
		return cfg.Simulation.SimilarLimit, true
	case "simulation.failure_policy":
		return cfg.Simulation.FailurePolicy, true
	case "simulation.agent_timeout":
		return cfg.Simulation.AgentTimeout.String(), true
	case "simulation.max_concurrency":
		return cfg.Simulation.MaxConcurrency, true
	case "server.addr":
		return cfg.Server.Addr, true
	case "notify.nats_url":
		return cfg.Notify.NATSURL, true
	case "notify.subject":
		return cfg.Notify.Subject, true
	case "notify.embedded_port":
		return cfg.Notify.EmbeddedPort, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.format":
		return cfg.Logging.Format, true
	case "logging.dir":
		return cfg.Logging.Dir, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. Range and
// enum checks are left to PolarisConfig.Validate.
func setConfigValue(cfg *config.PolarisConfig, key, value string) error {
	var err error
	switch key {
	case "llm.provider":
		cfg.LLM.Provider = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.api_key":
		cfg.LLM.APIKey = value
	case "llm.base_url":
		cfg.LLM.BaseURL = value
	case "llm.max_tokens":
		cfg.LLM.MaxTokens, err = parseInt(key, value)
	case "llm.timeout":
		cfg.LLM.Timeout, err = parseDuration(key, value)
	case "embedding.provider":
		cfg.Embedding.Provider = value
	case "embedding.model":
		cfg.Embedding.Model = value
	case "embedding.api_key":
		cfg.Embedding.APIKey = value
	case "embedding.dimensions":
		cfg.Embedding.Dimensions, err = parseInt(key, value)
	case "database.path":
		cfg.Database.Path = value
	case "database.memory":
		cfg.Database.Memory = value == "true" || value == "1"
	case "simulation.similar_limit":
		cfg.Simulation.SimilarLimit, err = parseInt(key, value)
	case "simulation.failure_policy":
		cfg.Simulation.FailurePolicy = value
	case "simulation.agent_timeout":
		cfg.Simulation.AgentTimeout, err = parseDuration(key, value)
	case "simulation.max_concurrency":
		cfg.Simulation.MaxConcurrency, err = parseInt(key, value)
	case "server.addr":
		cfg.Server.Addr = value
	case "notify.nats_url":
		cfg.Notify.NATSURL = value
	case "notify.subject":
		cfg.Notify.Subject = value
	case "notify.embedded_port":
		cfg.Notify.EmbeddedPort, err = parseInt(key, value)
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "logging.dir":
		cfg.Logging.Dir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

// configFilePath returns --config, or ~/.polaris/config.yaml.
func configFilePath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return filepath.Join(config.Dir(), "config.yaml")
}

// saveConfig writes cfg to path, creating its directory.
func saveConfig(cfg *config.PolarisConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
