package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/polaris/internal/agent"
	"github.com/nvandessel/polaris/internal/embedding"
	"github.com/nvandessel/polaris/internal/llm"
	"github.com/nvandessel/polaris/internal/ratelimit"
	"github.com/nvandessel/polaris/internal/retrieval"
	"github.com/nvandessel/polaris/internal/seed"
	"github.com/nvandessel/polaris/internal/service"
	"github.com/nvandessel/polaris/internal/simulation"
	"github.com/nvandessel/polaris/internal/store"
)

func setupTestServer(t *testing.T, gen llm.Generator) (*Server, string) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	engine := embedding.NewMockEngine(64)
	if _, _, err := seed.NewSeeder(st, engine, nil).SeedAll(ctx); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	coord := simulation.New(retrieval.New(engine, st, nil), st, agent.New(gen), simulation.DefaultOptions(), nil)
	svc := service.New(st, engine, coord, nil, nil)

	auditDir := t.TempDir()
	server := NewServer(&Config{Name: "test-server", Version: "v1.0.0", AuditDir: auditDir}, svc)
	t.Cleanup(func() { server.Close() })
	return server, auditDir
}

func TestHandleSimulate(t *testing.T) {
	gen := llm.NewMockClient().WithResponse(`{"escalation_score": 3.5, "reaction": "Open back channel", "rationale": "De-escalate."}`)
	server, _ := setupTestServer(t, gen)

	_, out, err := server.handleSimulate(context.Background(), &sdk.CallToolRequest{}, SimulateInput{
		Text: "Disputed election results spark mass protests",
	})
	if err != nil {
		t.Fatalf("handleSimulate() error = %v", err)
	}
	if out.SimulationID == "" || out.CreatedAt == "" {
		t.Errorf("missing identifiers: %+v", out)
	}
	if len(out.Results) != 4 || out.AvgEscalation != 3.5 {
		t.Errorf("output = %+v", out)
	}
	for _, r := range out.Results {
		if r.Outcome != "parsed" || len(r.SimilarEvents) != 3 {
			t.Errorf("result = %+v", r)
		}
	}

	_, hist, err := server.handleHistory(context.Background(), &sdk.CallToolRequest{}, HistoryInput{})
	if err != nil {
		t.Fatal(err)
	}
	if hist.Count != 1 || hist.Simulations[0].SimulationID != out.SimulationID {
		t.Errorf("history = %+v", hist)
	}
}

func TestHandleSimulate_InvalidText(t *testing.T) {
	server, _ := setupTestServer(t, llm.NewMockClient())
	_, _, err := server.handleSimulate(context.Background(), &sdk.CallToolRequest{}, SimulateInput{Text: "short"})
	if !errors.Is(err, service.ErrInvalidEvent) {
		t.Errorf("error = %v, want ErrInvalidEvent", err)
	}
}

func TestHandleSimulate_RateLimited(t *testing.T) {
	gen := llm.NewMockClient().WithResponse(`{}`)
	server, _ := setupTestServer(t, gen)
	server.toolLimiters["polaris_simulate"] = ratelimit.NewLimiter(0.001, 1)

	in := SimulateInput{Text: "Peacekeeping forces attacked by militants"}
	if _, _, err := server.handleSimulate(context.Background(), &sdk.CallToolRequest{}, in); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	_, _, err := server.handleSimulate(context.Background(), &sdk.CallToolRequest{}, in)
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Errorf("second call error = %v, want ErrRateLimited", err)
	}
}

func TestHandleLeaders(t *testing.T) {
	server, _ := setupTestServer(t, llm.NewMockClient())
	_, out, err := server.handleLeaders(context.Background(), &sdk.CallToolRequest{}, LeadersInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Count != 4 || len(out.Leaders) != 4 {
		t.Errorf("output = %+v", out)
	}
}

func TestHandleHistory_Limit(t *testing.T) {
	server, _ := setupTestServer(t, llm.NewMockClient())
	for _, limit := range []int{-1, 101} {
		if _, _, err := server.handleHistory(context.Background(), &sdk.CallToolRequest{}, HistoryInput{Limit: limit}); err == nil {
			t.Errorf("limit %d: expected error", limit)
		}
	}
	_, out, err := server.handleHistory(context.Background(), &sdk.CallToolRequest{}, HistoryInput{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if out.Simulations == nil || out.Count != 0 {
		t.Errorf("empty history = %+v", out)
	}
}

func TestHandleLeadersResource(t *testing.T) {
	server, _ := setupTestServer(t, llm.NewMockClient())
	res, err := server.handleLeadersResource(context.Background(), &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("got %d contents", len(res.Contents))
	}
	text := res.Contents[0].Text
	if !strings.Contains(text, "| Status-quo Diplomat | 2 | 9 | 3 | 4 | 8 |") {
		t.Errorf("resource text missing leader row:\n%s", text)
	}
}

func TestRenderLeaders_Empty(t *testing.T) {
	if got := renderLeaders(nil); !strings.Contains(got, "No leaders seeded yet") {
		t.Errorf("renderLeaders(nil) = %q", got)
	}
}
