// Package config provides unified configuration loading for polaris.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/pathutil"
	"gopkg.in/yaml.v3"
)

// Failure policies for a simulation run.
const (
	FailFast = "fail_fast"
	Isolate  = "isolate"
)

// PolarisConfig contains all polaris configuration settings.
type PolarisConfig struct {
	// LLM configures the text generation backend shared by every persona agent.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Embedding configures the backend that vectorizes event text.
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`

	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig configures polaris's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to <dir>/decisions.jsonl.
	// "trace" additionally includes full agent prompts and raw model output.
	Level string `json:"level" yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format"`

	// Dir is where the decision log is written.
	Dir string `json:"dir" yaml:"dir"`
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	// Provider identifies the backend: "anthropic", "openai", "ollama", or "mock".
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the provider. Supports ${VAR} syntax for env vars.
	// Not required for ollama or mock.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint. Used for ollama or custom OpenAI-compatible endpoints.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	Model string `json:"model" yaml:"model"`

	// MaxTokens is the output budget per agent call.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds a single HTTP round trip to the provider.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RedactedAPIKey returns the API key with most characters masked.
// Shows first 4 and last 4 characters, e.g., "sk-a...xyz9".
// Returns "" for empty keys and "(set)" for keys shorter than 12 chars.
func (c LLMConfig) RedactedAPIKey() string {
	return redact(c.APIKey)
}

// String implements fmt.Stringer to prevent accidental API key logging.
func (c LLMConfig) String() string {
	return fmt.Sprintf("LLMConfig{Provider:%s, Model:%s, APIKey:%s, MaxTokens:%d}",
		c.Provider, c.Model, c.RedactedAPIKey(), c.MaxTokens)
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	// Provider identifies the backend: "openai", "gemini", "local", or "mock".
	Provider string `json:"provider" yaml:"provider"`

	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string `json:"model" yaml:"model"`

	// Dimensions is the vector size requested from the provider. Every stored
	// event must share it.
	Dimensions int `json:"dimensions" yaml:"dimensions"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// LocalLibPath is the llama.cpp library directory. Empty falls back to
	// YZMA_LIB, then to the directory installed by "polaris setup".
	LocalLibPath string `json:"local_lib_path,omitempty" yaml:"local_lib_path,omitempty"`

	// LocalModelPath is the path to a GGUF embedding model.
	// Only used when provider is "local". Requires building with -tags llamacpp.
	LocalModelPath string `json:"local_model_path,omitempty" yaml:"local_model_path,omitempty"`

	// LocalGPULayers is the number of model layers to offload to GPU (0 = CPU only).
	LocalGPULayers int `json:"local_gpu_layers,omitempty" yaml:"local_gpu_layers,omitempty"`

	// LocalContextSize is the context window size in tokens for the local model.
	LocalContextSize int `json:"local_context_size,omitempty" yaml:"local_context_size,omitempty"`
}

// RedactedAPIKey returns the API key with most characters masked.
func (c EmbeddingConfig) RedactedAPIKey() string {
	return redact(c.APIKey)
}

// String implements fmt.Stringer to prevent accidental API key logging.
func (c EmbeddingConfig) String() string {
	return fmt.Sprintf("EmbeddingConfig{Provider:%s, Model:%s, APIKey:%s, Dimensions:%d}",
		c.Provider, c.Model, c.RedactedAPIKey(), c.Dimensions)
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite file. Ignored when Memory is set.
	Path string `json:"path" yaml:"path"`

	// Memory keeps everything in process memory for the lifetime of the command.
	Memory bool `json:"memory" yaml:"memory"`
}

// SimulationConfig configures the coordinator.
type SimulationConfig struct {
	// SimilarLimit is how many historical events are retrieved per run.
	SimilarLimit int `json:"similar_limit" yaml:"similar_limit"`

	// FailurePolicy is "fail_fast" (default) or "isolate".
	FailurePolicy string `json:"failure_policy" yaml:"failure_policy"`

	// AgentTimeout bounds each agent's generation call. Zero disables it.
	AgentTimeout time.Duration `json:"agent_timeout,omitempty" yaml:"agent_timeout,omitempty"`

	// MaxConcurrency caps in-flight agents. Zero means one goroutine per profile.
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
}

// ServerConfig configures the HTTP API and MCP server.
type ServerConfig struct {
	Addr        string   `json:"addr" yaml:"addr"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// SimulateRate is the sustained simulate requests per minute allowed per client.
	SimulateRate float64 `json:"simulate_rate" yaml:"simulate_rate"`

	// SimulateBurst is the bucket size for simulate requests.
	SimulateBurst int `json:"simulate_burst" yaml:"simulate_burst"`
}

// NotifyConfig configures result broadcasting.
type NotifyConfig struct {
	// NATSURL enables publishing when non-empty.
	NATSURL string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	Subject string `json:"subject" yaml:"subject"`

	// EmbeddedPort starts an in-process NATS server on this port when
	// serving and no NATSURL is set. Zero disables it.
	EmbeddedPort int `json:"embedded_port,omitempty" yaml:"embedded_port,omitempty"`
}

// Default returns a PolarisConfig with sensible defaults.
func Default() *PolarisConfig {
	return &PolarisConfig{
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: constants.DefaultMaxTokens,
			Timeout:   60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: constants.EmbeddingDimensions,
			Timeout:    30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
		Simulation: SimulationConfig{
			SimilarLimit:  constants.DefaultSimilarLimit,
			FailurePolicy: FailFast,
		},
		Server: ServerConfig{
			Addr:          ":8000",
			CORSOrigins:   []string{"http://localhost:3000"},
			SimulateRate:  10,
			SimulateBurst: 3,
		},
		Notify: NotifyConfig{
			Subject: constants.SimulationCompletedSubject,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Dir:    ".polaris",
		},
	}
}

// Dir returns the polaris home directory (~/.polaris), or ".polaris" when
// the home directory cannot be determined.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".polaris"
	}
	return filepath.Join(home, ".polaris")
}

// DefaultDatabasePath returns ~/.polaris/polaris.db.
func DefaultDatabasePath() string {
	return filepath.Join(Dir(), "polaris.db")
}

// Load loads configuration from path, or from ~/.polaris/config.yaml when
// path is empty, then applies environment variable overrides.
// Order: defaults -> config file -> environment variables
func Load(path string) (*PolarisConfig, error) {
	config := Default()

	if path == "" {
		candidate := filepath.Join(Dir(), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)
	expandPaths(config)

	return config, nil
}

// expandPaths resolves "~" in every configured path.
func expandPaths(config *PolarisConfig) {
	config.Database.Path = pathutil.ExpandHome(config.Database.Path)
	config.Logging.Dir = pathutil.ExpandHome(config.Logging.Dir)
	config.Embedding.LocalLibPath = pathutil.ExpandHome(config.Embedding.LocalLibPath)
	config.Embedding.LocalModelPath = pathutil.ExpandHome(config.Embedding.LocalModelPath)
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*PolarisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.LLM.APIKey = expandEnvVars(config.LLM.APIKey)
	config.Embedding.APIKey = expandEnvVars(config.Embedding.APIKey)
	config.Notify.NATSURL = expandEnvVars(config.Notify.NATSURL)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *PolarisConfig) Validate() error {
	validLLM := map[string]bool{"anthropic": true, "openai": true, "ollama": true, "mock": true}
	if !validLLM[c.LLM.Provider] {
		return fmt.Errorf("invalid llm provider: %q (valid: anthropic, openai, ollama, mock)", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must be non-negative, got %v", c.LLM.Timeout)
	}

	validEmbedding := map[string]bool{"openai": true, "gemini": true, "local": true, "mock": true}
	if !validEmbedding[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding provider: %q (valid: openai, gemini, local, mock)", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Provider == "local" && c.Embedding.LocalModelPath == "" {
		return fmt.Errorf("embedding.local_model_path is required for the local provider")
	}

	if !c.Database.Memory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required unless database.memory is set")
	}

	if c.Simulation.SimilarLimit <= 0 {
		return fmt.Errorf("simulation.similar_limit must be positive, got %d", c.Simulation.SimilarLimit)
	}
	if c.Simulation.FailurePolicy != FailFast && c.Simulation.FailurePolicy != Isolate {
		return fmt.Errorf("invalid failure policy: %q (valid: %s, %s)", c.Simulation.FailurePolicy, FailFast, Isolate)
	}
	if c.Simulation.AgentTimeout < 0 {
		return fmt.Errorf("simulation.agent_timeout must be non-negative, got %v", c.Simulation.AgentTimeout)
	}
	if c.Simulation.MaxConcurrency < 0 {
		return fmt.Errorf("simulation.max_concurrency must be non-negative, got %d", c.Simulation.MaxConcurrency)
	}

	if c.Server.SimulateRate < 0 || c.Server.SimulateBurst < 0 {
		return fmt.Errorf("server rate limits must be non-negative")
	}
	if c.Notify.EmbeddedPort < 0 || c.Notify.EmbeddedPort > 65535 {
		return fmt.Errorf("notify.embedded_port out of range: %d", c.Notify.EmbeddedPort)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *PolarisConfig) {
	if v := os.Getenv("POLARIS_LLM_PROVIDER"); v != "" {
		config.LLM.Provider = v
	}
	if v := os.Getenv("POLARIS_LLM_MODEL"); v != "" {
		config.LLM.Model = v
	}
	if v := os.Getenv("POLARIS_EMBEDDING_PROVIDER"); v != "" {
		config.Embedding.Provider = v
	}
	if v := os.Getenv("POLARIS_EMBEDDING_MODEL"); v != "" {
		config.Embedding.Model = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.LLM.Provider == "anthropic" {
		config.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if config.LLM.Provider == "openai" {
			config.LLM.APIKey = v
		}
		if config.Embedding.Provider == "openai" {
			config.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.Embedding.Provider == "gemini" {
		config.Embedding.APIKey = v
	}

	// Ollama uses OLLAMA_HOST for base URL (no API key needed)
	if config.LLM.Provider == "ollama" {
		if v := os.Getenv("OLLAMA_HOST"); v != "" {
			config.LLM.BaseURL = v
		} else if config.LLM.BaseURL == "" {
			config.LLM.BaseURL = "http://localhost:11434/v1"
		}
	}

	if v := os.Getenv("POLARIS_LOCAL_EMBEDDING_MODEL_PATH"); v != "" {
		config.Embedding.LocalModelPath = v
	}
	if v := os.Getenv("POLARIS_LOCAL_GPU_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Embedding.LocalGPULayers = n
		}
	}

	if v := os.Getenv("POLARIS_DB_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("POLARIS_DB_MEMORY"); v != "" {
		config.Database.Memory = v == "true" || v == "1"
	}

	if v := os.Getenv("POLARIS_FAILURE_POLICY"); v != "" {
		config.Simulation.FailurePolicy = v
	}
	if v := os.Getenv("POLARIS_SIMILAR_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.SimilarLimit = n
		}
	}
	if v := os.Getenv("POLARIS_AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Simulation.AgentTimeout = d
		}
	}

	if v := os.Getenv("POLARIS_SERVER_ADDR"); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv("POLARIS_NATS_URL"); v != "" {
		config.Notify.NATSURL = v
	}

	if v := os.Getenv("POLARIS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("POLARIS_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	if len(key) < 12 {
		return "(set)"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
