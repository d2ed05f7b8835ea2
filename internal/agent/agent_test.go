package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/polaris/internal/llm"
	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
)

func TestJudge_Parsed(t *testing.T) {
	mock := llm.NewMockClient().WithResponse(`{"escalation_score": 7.5, "reaction": "Deploy carriers", "rationale": "Show of force."}`)
	a := New(mock)

	similar := []models.SimilarEvent{
		{ID: "e1", Text: "Naval blockade", Similarity: 0.9},
		{ID: "e2", Text: "Airspace violation", Similarity: 0.7},
	}
	j, err := a.Judge(context.Background(), testProfile(), "Strait of Hormuz closed", similar)
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}

	if j.Leader != "Revisionist Expansionist" || j.EscalationScore != 7.5 || j.Reaction != "Deploy carriers" {
		t.Errorf("unexpected judgment %+v", j)
	}
	if j.Outcome != models.OutcomeParsed || j.Degraded() {
		t.Errorf("Outcome = %q, want parsed", j.Outcome)
	}
	if len(j.SimilarEvents) != 2 || j.SimilarEvents[0] != "Naval blockade" || j.SimilarEvents[1] != "Airspace violation" {
		t.Errorf("SimilarEvents = %v", j.SimilarEvents)
	}

	if mock.CallCount() != 1 {
		t.Fatalf("generator called %d times, want 1", mock.CallCount())
	}
	req := mock.Calls[0]
	if req.User != "Crisis Event: Strait of Hormuz closed" {
		t.Errorf("user message = %q", req.User)
	}
	if req.MaxTokens != 500 {
		t.Errorf("MaxTokens = %d, want 500", req.MaxTokens)
	}
	if !strings.Contains(req.System, "- Naval blockade (similarity: 0.9)") {
		t.Error("system prompt does not carry the retrieved context")
	}
}

func TestJudge_ClampsScore(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`{"escalation_score": 14, "reaction": "a", "rationale": "b"}`, 10},
		{`{"escalation_score": -3, "reaction": "a", "rationale": "b"}`, 0},
		{`{"escalation_score": "NaN", "reaction": "a", "rationale": "b"}`, 5},
	}
	for _, tt := range tests {
		j, err := New(llm.NewMockClient().WithResponse(tt.raw)).Judge(context.Background(), testProfile(), "event", nil)
		if err != nil {
			t.Fatal(err)
		}
		if j.EscalationScore != tt.want {
			t.Errorf("raw %s: score = %v, want %v", tt.raw, j.EscalationScore, tt.want)
		}
	}
}

func TestJudge_Fallback(t *testing.T) {
	mock := llm.NewMockClient().WithResponse("As this leader I would wait and see.")
	j, err := New(mock).Judge(context.Background(), testProfile(), "event", nil)
	if err != nil {
		t.Fatalf("malformed output must not be an error: %v", err)
	}
	if j.Outcome != models.OutcomeFallback || j.Reaction != "Response unclear" || j.EscalationScore != 5 {
		t.Errorf("unexpected fallback judgment %+v", j)
	}
	if j.SimilarEvents == nil {
		t.Error("SimilarEvents should be an empty slice, not nil")
	}
}

func TestJudge_GenerationError(t *testing.T) {
	cause := errors.New("503 overloaded")
	_, err := New(llm.NewMockClient().WithError(cause)).Judge(context.Background(), testProfile(), "event", nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("error = %v, want ErrGenerationFailed", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v should wrap the cause", err)
	}
}

func TestJudge_WithMaxTokens(t *testing.T) {
	mock := llm.NewMockClient().WithResponse(`{}`)
	if _, err := New(mock, WithMaxTokens(120)).Judge(context.Background(), testProfile(), "event", nil); err != nil {
		t.Fatal(err)
	}
	if mock.Calls[0].MaxTokens != 120 {
		t.Errorf("MaxTokens = %d, want 120", mock.Calls[0].MaxTokens)
	}

	mock.Reset()
	mock.WithResponse(`{}`)
	if _, err := New(mock, WithMaxTokens(0)).Judge(context.Background(), testProfile(), "event", nil); err != nil {
		t.Fatal(err)
	}
	if mock.Calls[0].MaxTokens != 500 {
		t.Errorf("zero budget should keep the default, got %d", mock.Calls[0].MaxTokens)
	}
}

func TestJudge_DecisionTrace(t *testing.T) {
	dir := t.TempDir()
	dl := logging.NewDecisionLogger(dir, "trace")
	if dl == nil {
		t.Fatal("expected a decision logger at trace level")
	}

	mock := llm.NewMockClient().WithResponse(`{"escalation_score": 2, "reaction": "Negotiate", "rationale": "r"}`)
	if _, err := New(mock, WithDecisionLogger(dl)).Judge(context.Background(), testProfile(), "event", nil); err != nil {
		t.Fatal(err)
	}
	dl.Close()

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("decision line is not JSON: %v", err)
	}
	if entry["event"] != "agent_judgment" || entry["leader"] != "Revisionist Expansionist" || entry["outcome"] != "parsed" {
		t.Errorf("unexpected decision entry %v", entry)
	}
	if _, ok := entry["prompt"]; !ok {
		t.Error("trace level should record the prompt")
	}
}

func TestUnavailable(t *testing.T) {
	j := Unavailable(testProfile(), []models.SimilarEvent{{Text: "A"}}, errors.New("timeout"))
	if j.Outcome != models.OutcomeUnavailable || j.Reaction != "Agent unavailable" || j.EscalationScore != 5 {
		t.Errorf("unexpected judgment %+v", j)
	}
	if j.Error != "timeout" || len(j.SimilarEvents) != 1 {
		t.Errorf("unexpected judgment %+v", j)
	}
}
