package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/polaris/internal/config"
	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/ratelimit"
	"github.com/nvandessel/polaris/internal/setup"
	"github.com/nvandessel/polaris/internal/store"
)

const testEvent = "A naval blockade is declared around a disputed strait after a collision"

// isolateEnv points HOME, the database and both providers at test-local
// values. MUST be called by any test that opens a store.
func isolateEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	t.Setenv("POLARIS_DB_PATH", filepath.Join(tmpDir, "polaris.db"))
	t.Setenv("POLARIS_LLM_PROVIDER", "mock")
	t.Setenv("POLARIS_EMBEDDING_PROVIDER", "mock")
	t.Setenv("POLARIS_LOG_LEVEL", "info")
	t.Setenv("POLARIS_NATS_URL", "")
	return tmpDir
}

// runCLI executes a fresh root command and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "serve", "simulate", "seed", "leaders", "history", "show", "mcp-server", "config", "setup"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	seen := make(map[string]int)
	for _, c := range root.Commands() {
		seen[c.Name()]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("subcommand %q registered %d times", name, n)
		}
	}
	for _, flag := range []string{"json", "config", "memory"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "polaris version "+version) {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if got["version"] != version || got["commit"] != commit {
		t.Errorf("got %v", got)
	}
}

func TestSimulateCmd_Memory(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "--memory", "simulate", "--json", "--ordered", testEvent)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	var resp models.SimulationResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if resp.EventText != testEvent {
		t.Errorf("EventText = %q", resp.EventText)
	}

	wantOrder := []string{"Crisis Populist", "Isolationist Stabilizer", "Revisionist Expansionist", "Status-quo Diplomat"}
	if len(resp.Results) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(resp.Results), len(wantOrder))
	}
	for i, j := range resp.Results {
		if j.Leader != wantOrder[i] {
			t.Errorf("Results[%d].Leader = %q, want %q", i, j.Leader, wantOrder[i])
		}
		// The mock model answers with empty text.
		if j.Outcome != models.OutcomeFallback || j.EscalationScore != 5 {
			t.Errorf("%s: outcome %s score %v, want fallback 5", j.Leader, j.Outcome, j.EscalationScore)
		}
		if len(j.SimilarEvents) != 3 || j.SimilarEvents[0] != testEvent {
			t.Errorf("%s: similar events = %v, want the event itself first", j.Leader, j.SimilarEvents)
		}
	}
}

func TestSimulateCmd_Text(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "--memory", "simulate", "Border", "clashes", "follow", "a", "contested", "election")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for _, want := range []string{
		"Event: Border clashes follow a contested election",
		"Revisionist Expansionist  escalation 5.0  [fallback]",
		"Average escalation: 5.00 (4 degraded)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulateCmd_InvalidEvent(t *testing.T) {
	isolateEnv(t)

	if _, err := runCLI(t, "--memory", "simulate", "too short"); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := runCLI(t, "simulate"); err == nil {
		t.Fatal("expected missing argument error")
	}
}

func TestSQLiteWorkflow(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "seed", "--json")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var seeded struct {
		Leaders struct{ Added []string } `json:"leaders"`
		Events  struct{ Added []string } `json:"events"`
	}
	if err := json.Unmarshal([]byte(out), &seeded); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(seeded.Leaders.Added) != 4 || len(seeded.Events.Added) != 15 {
		t.Errorf("first seed added %d leaders, %d events", len(seeded.Leaders.Added), len(seeded.Events.Added))
	}

	out, err = runCLI(t, "seed")
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out, "0 added, 4 already present") || !strings.Contains(out, "already seeded") {
		t.Errorf("second seed output:\n%s", out)
	}

	out, err = runCLI(t, "leaders", "--json")
	if err != nil {
		t.Fatalf("leaders: %v", err)
	}
	var leaders []models.LeaderProfile
	if err := json.Unmarshal([]byte(out), &leaders); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(leaders) != 4 {
		t.Errorf("got %d leaders, want 4", len(leaders))
	}

	out, err = runCLI(t, "simulate", "--json", testEvent)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var resp models.SimulationResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}

	out, err = runCLI(t, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var history []models.SimulationSummary
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(history) != 1 || history[0].SimulationID != resp.SimulationID || history[0].AvgEscalation != 5 {
		t.Errorf("history = %+v", history)
	}

	out, err = runCLI(t, "show", "--json", resp.SimulationID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var shown models.SimulationResponse
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if shown.SimulationID != resp.SimulationID || len(shown.Results) != 4 {
		t.Errorf("show = %+v", shown)
	}

	if _, err := runCLI(t, "show", "no-such-simulation"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("show unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestLeadersCmd_Table(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "--memory", "leaders")
	if err != nil {
		t.Fatalf("leaders: %v", err)
	}
	if !strings.HasPrefix(out, "NAME") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "Status-quo Diplomat") {
		t.Errorf("missing leader row:\n%s", out)
	}
}

func TestHistoryCmd(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "--memory", "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No simulations yet.") {
		t.Errorf("output = %q", out)
	}

	if _, err := runCLI(t, "--memory", "history", "--limit", "0"); err == nil {
		t.Error("expected error for --limit 0")
	}
}

func TestConfigSetGet(t *testing.T) {
	tmpDir := isolateEnv(t)
	path := filepath.Join(tmpDir, "config.yaml")

	if _, err := runCLI(t, "--config", path, "config", "set", "simulation.failure_policy", config.Isolate); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := runCLI(t, "--config", path, "config", "set", "simulation.agent_timeout", "45s"); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err := runCLI(t, "--config", path, "config", "get", "simulation.failure_policy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "simulation.failure_policy = isolate" {
		t.Errorf("get output = %q", out)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Simulation.AgentTimeout != 45*time.Second {
		t.Errorf("AgentTimeout = %v, want 45s", cfg.Simulation.AgentTimeout)
	}
	// Environment overrides are not written back.
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider = %q, want the file default", cfg.LLM.Provider)
	}

	if _, err := runCLI(t, "--config", path, "config", "set", "simulation.failure_policy", "bogus"); err == nil {
		t.Error("expected validation error")
	}
	if _, err := runCLI(t, "--config", path, "config", "set", "llm.max_tokens", "many"); err == nil {
		t.Error("expected integer parse error")
	}
	if _, err := runCLI(t, "--config", path, "config", "get", "no.such.key"); err == nil {
		t.Error("expected unknown key error")
	}
}

func TestConfigListRedactsKeys(t *testing.T) {
	isolateEnv(t)
	t.Setenv("POLARIS_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-abcdefghijklmnop")

	out, err := runCLI(t, "config", "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Errorf("API key leaked: %s", out)
	}
	var cfg config.PolarisConfig
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if cfg.LLM.APIKey != "sk-a...mnop" {
		t.Errorf("APIKey = %q, want redacted", cfg.LLM.APIKey)
	}
}

func TestSetupCmd_Check(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "setup", "--check", "--json")
	if err != nil {
		t.Fatalf("setup --check: %v", err)
	}
	var inst setup.Installation
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if inst.Available || inst.LibDir != "" || inst.ModelPath != "" {
		t.Errorf("fresh home reported %+v", inst)
	}
}

func TestApplyLocalSetup(t *testing.T) {
	t.Setenv("YZMA_LIB", "")
	inst := setup.Installation{LibDir: "/home/u/.polaris/lib", ModelPath: "/home/u/.polaris/models/m.gguf", Available: true}

	cfg := config.EmbeddingConfig{Provider: "local"}
	applyLocalSetup(&cfg, inst)
	if cfg.LocalLibPath != inst.LibDir || cfg.LocalModelPath != inst.ModelPath {
		t.Errorf("unset paths not filled: %+v", cfg)
	}

	cfg = config.EmbeddingConfig{Provider: "local", LocalModelPath: "/models/custom.gguf"}
	applyLocalSetup(&cfg, inst)
	if cfg.LocalModelPath != "/models/custom.gguf" {
		t.Errorf("configured model path overwritten: %q", cfg.LocalModelPath)
	}

	t.Setenv("YZMA_LIB", "/opt/llama")
	cfg = config.EmbeddingConfig{Provider: "local"}
	applyLocalSetup(&cfg, inst)
	if cfg.LocalLibPath != "" {
		t.Errorf("YZMA_LIB should take precedence, got %q", cfg.LocalLibPath)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abcdefghij", 10, "abcdefghij"},
		{"long", "abcdefghijk", 10, "abcdefg..."},
		{"multibyte", "ééééééééééé", 10, "ééééééé..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestPruneLimiter(t *testing.T) {
	l := ratelimit.NewLimiter(1, 1)
	l.Allow("10.0.0.1")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		pruneLimiter(ctx, l, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for l.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if l.Len() != 0 {
		t.Errorf("idle bucket not pruned, %d keys left", l.Len())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruneLimiter did not stop after cancel")
	}
}

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(t.Context())
	ctx, cancel := signalContext(parent)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("signal context not cancelled with its parent")
	}
}
