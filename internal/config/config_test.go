package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable applyEnvOverrides reads so host settings
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"POLARIS_LLM_PROVIDER", "POLARIS_LLM_MODEL", "POLARIS_EMBEDDING_PROVIDER", "POLARIS_EMBEDDING_MODEL",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "OLLAMA_HOST",
		"POLARIS_LOCAL_EMBEDDING_MODEL_PATH", "POLARIS_LOCAL_GPU_LAYERS",
		"POLARIS_DB_PATH", "POLARIS_DB_MEMORY", "POLARIS_FAILURE_POLICY", "POLARIS_SIMILAR_LIMIT",
		"POLARIS_AGENT_TIMEOUT", "POLARIS_SERVER_ADDR", "POLARIS_NATS_URL",
		"POLARIS_LOG_LEVEL", "POLARIS_LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	config := Default()

	if config.LLM.Provider != "anthropic" {
		t.Errorf("expected LLM provider 'anthropic', got '%s'", config.LLM.Provider)
	}
	if config.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected default model %q", config.LLM.Model)
	}
	if config.LLM.MaxTokens != 500 {
		t.Errorf("expected MaxTokens 500, got %d", config.LLM.MaxTokens)
	}
	if config.Embedding.Provider != "openai" || config.Embedding.Dimensions != 1536 {
		t.Errorf("unexpected embedding defaults: %s", config.Embedding)
	}
	if config.Simulation.SimilarLimit != 3 {
		t.Errorf("expected SimilarLimit 3, got %d", config.Simulation.SimilarLimit)
	}
	if config.Simulation.FailurePolicy != FailFast {
		t.Errorf("expected FailurePolicy %q, got %q", FailFast, config.Simulation.FailurePolicy)
	}
	if config.Notify.Subject != "polaris.simulations.completed" {
		t.Errorf("unexpected notify subject %q", config.Notify.Subject)
	}
	if config.Notify.NATSURL != "" {
		t.Error("expected notifications disabled by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
  model: gpt-4o-mini
  max_tokens: 300
  timeout: 10s
embedding:
  provider: gemini
  model: text-embedding-004
  dimensions: 768
database:
  memory: true
simulation:
  similar_limit: 5
  failure_policy: isolate
  agent_timeout: 45s
  max_concurrency: 2
server:
  addr: ":9000"
  cors_origins: ["https://polaris.example"]
notify:
  nats_url: nats://localhost:4222
logging:
  level: debug
  format: json
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.LLM.Provider != "openai" || config.LLM.Model != "gpt-4o-mini" || config.LLM.MaxTokens != 300 {
		t.Errorf("unexpected llm section: %s", config.LLM)
	}
	if config.LLM.Timeout != 10*time.Second {
		t.Errorf("expected Timeout 10s, got %v", config.LLM.Timeout)
	}
	if config.Embedding.Provider != "gemini" || config.Embedding.Dimensions != 768 {
		t.Errorf("unexpected embedding section: %s", config.Embedding)
	}
	if !config.Database.Memory {
		t.Error("expected database.memory true")
	}
	if config.Simulation.SimilarLimit != 5 || config.Simulation.FailurePolicy != Isolate {
		t.Errorf("unexpected simulation section: %+v", config.Simulation)
	}
	if config.Simulation.AgentTimeout != 45*time.Second || config.Simulation.MaxConcurrency != 2 {
		t.Errorf("unexpected simulation limits: %+v", config.Simulation)
	}
	if config.Server.Addr != ":9000" || len(config.Server.CORSOrigins) != 1 {
		t.Errorf("unexpected server section: %+v", config.Server)
	}
	if config.Notify.NATSURL != "nats://localhost:4222" {
		t.Errorf("unexpected nats url %q", config.Notify.NATSURL)
	}
	// Unset fields keep their defaults.
	if config.Notify.Subject != "polaris.simulations.completed" {
		t.Errorf("subject default lost: %q", config.Notify.Subject)
	}
	if config.Logging.Level != "debug" || config.Logging.Format != "json" {
		t.Errorf("unexpected logging section: %+v", config.Logging)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "expanded-anthropic")
	t.Setenv("TEST_OPENAI_KEY", "expanded-openai")

	path := writeConfig(t, `
llm:
  api_key: ${TEST_ANTHROPIC_KEY}
embedding:
  api_key: ${TEST_OPENAI_KEY}
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.LLM.APIKey != "expanded-anthropic" {
		t.Errorf("expected expanded llm key, got %q", config.LLM.APIKey)
	}
	if config.Embedding.APIKey != "expanded-openai" {
		t.Errorf("expected expanded embedding key, got %q", config.Embedding.APIKey)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	path := writeConfig(t, "llm:\n  provider: [invalid yaml\n")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Run("no file uses defaults", func(t *testing.T) {
		config, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if config.LLM.Provider != "anthropic" {
			t.Errorf("expected defaults, got provider %q", config.LLM.Provider)
		}
	})

	t.Run("home config file", func(t *testing.T) {
		dir := filepath.Join(home, ".polaris")
		if err := os.MkdirAll(dir, 0700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("llm:\n  provider: ollama\n"), 0600); err != nil {
			t.Fatal(err)
		}
		config, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if config.LLM.Provider != "ollama" {
			t.Errorf("expected provider from home config, got %q", config.LLM.Provider)
		}
		if config.LLM.BaseURL != "http://localhost:11434/v1" {
			t.Errorf("expected ollama default base url, got %q", config.LLM.BaseURL)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		if _, err := Load(filepath.Join(home, "missing.yaml")); err == nil {
			t.Error("expected error for explicit missing path")
		}
	})
}

func TestLoad_ExpandsHome(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `database:
  path: ~/data/polaris.db
logging:
  dir: ~/logs
embedding:
  provider: local
  local_model_path: ~/models/nomic.gguf
`)
	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(home, "data", "polaris.db"); config.Database.Path != want {
		t.Errorf("Database.Path = %q, want %q", config.Database.Path, want)
	}
	if want := filepath.Join(home, "logs"); config.Logging.Dir != want {
		t.Errorf("Logging.Dir = %q, want %q", config.Logging.Dir, want)
	}
	if want := filepath.Join(home, "models", "nomic.gguf"); config.Embedding.LocalModelPath != want {
		t.Errorf("LocalModelPath = %q, want %q", config.Embedding.LocalModelPath, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLARIS_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-openai-key")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-ignored")
	t.Setenv("POLARIS_FAILURE_POLICY", "isolate")
	t.Setenv("POLARIS_SIMILAR_LIMIT", "7")
	t.Setenv("POLARIS_AGENT_TIMEOUT", "20s")
	t.Setenv("POLARIS_DB_MEMORY", "1")
	t.Setenv("POLARIS_NATS_URL", "nats://broker:4222")
	t.Setenv("POLARIS_LOG_LEVEL", "trace")

	config := Default()
	applyEnvOverrides(config)

	if config.LLM.Provider != "openai" {
		t.Errorf("expected Provider 'openai', got '%s'", config.LLM.Provider)
	}
	if config.LLM.APIKey != "sk-openai-key" {
		t.Errorf("expected openai key for openai provider, got %q", config.LLM.APIKey)
	}
	if config.Embedding.APIKey != "sk-openai-key" {
		t.Errorf("expected openai key for openai embeddings, got %q", config.Embedding.APIKey)
	}
	if config.Simulation.FailurePolicy != Isolate || config.Simulation.SimilarLimit != 7 {
		t.Errorf("unexpected simulation overrides: %+v", config.Simulation)
	}
	if config.Simulation.AgentTimeout != 20*time.Second {
		t.Errorf("expected agent timeout 20s, got %v", config.Simulation.AgentTimeout)
	}
	if !config.Database.Memory {
		t.Error("expected memory database")
	}
	if config.Notify.NATSURL != "nats://broker:4222" {
		t.Errorf("unexpected nats url %q", config.Notify.NATSURL)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected log level trace, got %q", config.Logging.Level)
	}
}

func TestEnvOverrides_ProviderScopedKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("POLARIS_EMBEDDING_PROVIDER", "gemini")

	config := Default()
	applyEnvOverrides(config)

	if config.LLM.APIKey != "sk-ant-key" {
		t.Errorf("expected anthropic key, got %q", config.LLM.APIKey)
	}
	if config.Embedding.APIKey != "gemini-key" {
		t.Errorf("expected gemini key, got %q", config.Embedding.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *PolarisConfig)
		wantErr string
	}{
		{"valid defaults", func(c *PolarisConfig) {}, ""},
		{"mock providers", func(c *PolarisConfig) { c.LLM.Provider = "mock"; c.Embedding.Provider = "mock" }, ""},
		{"unknown llm provider", func(c *PolarisConfig) { c.LLM.Provider = "palm" }, "invalid llm provider"},
		{"empty llm provider", func(c *PolarisConfig) { c.LLM.Provider = "" }, "invalid llm provider"},
		{"zero max tokens", func(c *PolarisConfig) { c.LLM.MaxTokens = 0 }, "max_tokens"},
		{"unknown embedding provider", func(c *PolarisConfig) { c.Embedding.Provider = "cohere" }, "invalid embedding provider"},
		{"local without model", func(c *PolarisConfig) { c.Embedding.Provider = "local" }, "local_model_path"},
		{"zero dimensions", func(c *PolarisConfig) { c.Embedding.Dimensions = 0 }, "dimensions"},
		{"no database path", func(c *PolarisConfig) { c.Database.Path = "" }, "database.path"},
		{"memory database without path", func(c *PolarisConfig) { c.Database.Path = ""; c.Database.Memory = true }, ""},
		{"zero similar limit", func(c *PolarisConfig) { c.Simulation.SimilarLimit = 0 }, "similar_limit"},
		{"unknown failure policy", func(c *PolarisConfig) { c.Simulation.FailurePolicy = "retry" }, "failure policy"},
		{"negative agent timeout", func(c *PolarisConfig) { c.Simulation.AgentTimeout = -time.Second }, "agent_timeout"},
		{"negative concurrency", func(c *PolarisConfig) { c.Simulation.MaxConcurrency = -1 }, "max_concurrency"},
		{"invalid log level", func(c *PolarisConfig) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"invalid log format", func(c *PolarisConfig) { c.Logging.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRedactedAPIKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", ""},
		{"short", "abc", "(set)"},
		{"exactly 11 chars", "abcdefghijk", "(set)"},
		{"exactly 12 chars", "abcdefghijkl", "abcd...ijkl"},
		{"normal", "sk-ant-REDACTED", "sk-a...mnop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (LLMConfig{APIKey: tt.key}).RedactedAPIKey(); got != tt.want {
				t.Errorf("LLMConfig.RedactedAPIKey() = %q, want %q", got, tt.want)
			}
			if got := (EmbeddingConfig{APIKey: tt.key}).RedactedAPIKey(); got != tt.want {
				t.Errorf("EmbeddingConfig.RedactedAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigString_RedactsKeys(t *testing.T) {
	llm := LLMConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514", APIKey: "sk-ant-REDACTED"}
	emb := EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", APIKey: "sk-proj-secretkey1234567890"}

	for _, tc := range []struct {
		s, key, redacted, model string
	}{
		{llm.String(), llm.APIKey, llm.RedactedAPIKey(), llm.Model},
		{emb.String(), emb.APIKey, emb.RedactedAPIKey(), emb.Model},
	} {
		if strings.Contains(tc.s, tc.key) {
			t.Errorf("String() must not contain full API key, got: %s", tc.s)
		}
		if !strings.Contains(tc.s, tc.redacted) {
			t.Errorf("String() should contain redacted key %q, got: %s", tc.redacted, tc.s)
		}
		if !strings.Contains(tc.s, tc.model) {
			t.Errorf("String() should contain model, got: %s", tc.s)
		}
	}
}
