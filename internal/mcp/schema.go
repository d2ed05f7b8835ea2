package mcp

import "github.com/nvandessel/polaris/internal/models"

// SimulateInput defines the input for the polaris_simulate tool.
type SimulateInput struct {
	Text string `json:"text" jsonschema:"Crisis event description, 10 to 2000 characters"`
}

// SimulateOutput defines the output for the polaris_simulate tool.
type SimulateOutput struct {
	SimulationID  string           `json:"simulation_id" jsonschema:"ID of the stored simulation"`
	EventText     string           `json:"event_text"`
	CreatedAt     string           `json:"created_at" jsonschema:"RFC 3339 creation time"`
	AvgEscalation float64          `json:"avg_escalation" jsonschema:"Mean escalation score across leaders (0-10)"`
	Results       []JudgmentResult `json:"results" jsonschema:"One judgment per leader in completion order"`
}

// JudgmentResult is one leader's reaction.
type JudgmentResult struct {
	Leader          string   `json:"leader"`
	EscalationScore float64  `json:"escalation_score"`
	Reaction        string   `json:"reaction"`
	Rationale       string   `json:"rationale"`
	SimilarEvents   []string `json:"similar_events"`
	Outcome         string   `json:"outcome" jsonschema:"parsed, fallback or unavailable"`
	Error           string   `json:"error,omitempty"`
}

// LeadersInput defines the input for the polaris_leaders tool.
type LeadersInput struct{}

// LeadersOutput defines the output for the polaris_leaders tool.
type LeadersOutput struct {
	Leaders []models.LeaderProfile `json:"leaders"`
	Count   int                    `json:"count"`
}

// HistoryInput defines the input for the polaris_history tool.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum simulations to return (default 20, max 100)"`
}

// HistoryOutput defines the output for the polaris_history tool.
type HistoryOutput struct {
	Simulations []HistoryItem `json:"simulations"`
	Count       int           `json:"count"`
}

// HistoryItem summarizes one stored simulation.
type HistoryItem struct {
	SimulationID  string  `json:"simulation_id"`
	EventText     string  `json:"event_text"`
	CreatedAt     string  `json:"created_at"`
	AvgEscalation float64 `json:"avg_escalation"`
}
