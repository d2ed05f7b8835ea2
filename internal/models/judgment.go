package models

import "math"

// Escalation score bounds.
const (
	EscalationMin = 0.0
	EscalationMax = 10.0
)

// Outcome tags how a judgment was produced, so callers can tell structured
// extraction apart from degraded output without re-parsing.
type Outcome string

const (
	// OutcomeParsed means the model output was a JSON object and its fields were extracted.
	OutcomeParsed Outcome = "parsed"

	// OutcomeFallback means the model output could not be parsed and a neutral
	// judgment was substituted.
	OutcomeFallback Outcome = "fallback"

	// OutcomeUnavailable means the generation call itself failed and the run was
	// configured to isolate per-agent failures.
	OutcomeUnavailable Outcome = "unavailable"
)

// Judgment is one persona agent's reaction to a crisis event.
type Judgment struct {
	// Leader is the profile name, used for correlation.
	Leader string `json:"leader"`

	// EscalationScore is always within [0,10].
	EscalationScore float64 `json:"escalation_score"`

	Reaction  string `json:"reaction"`
	Rationale string `json:"rationale"`

	// SimilarEvents holds the text of every retrieved event the agent saw,
	// in retrieval order.
	SimilarEvents []string `json:"similar_events"`

	Outcome Outcome `json:"outcome"`

	// Error carries the failure text for OutcomeUnavailable judgments.
	Error string `json:"error,omitempty"`
}

// Degraded reports whether the judgment did not come from a parsed model response.
func (j Judgment) Degraded() bool {
	return j.Outcome != OutcomeParsed
}

// ClampEscalation forces a score into [0,10]. NaN maps to the midpoint.
func ClampEscalation(score float64) float64 {
	if math.IsNaN(score) {
		return (EscalationMin + EscalationMax) / 2
	}
	return math.Max(EscalationMin, math.Min(EscalationMax, score))
}

// LeaderNames returns the leader of each judgment, preserving order.
func LeaderNames(judgments []Judgment) []string {
	names := make([]string, len(judgments))
	for i, j := range judgments {
		names[i] = j.Leader
	}
	return names
}
