package models

import "time"

// SimulationResponse is the outcome of one persisted simulation run.
type SimulationResponse struct {
	SimulationID string     `json:"simulation_id"`
	EventText    string     `json:"event_text"`
	CreatedAt    time.Time  `json:"created_at"`
	Results      []Judgment `json:"results"`
}

// SimulationSummary is one row of simulation history.
type SimulationSummary struct {
	SimulationID  string    `json:"simulation_id" db:"simulation_id"`
	EventText     string    `json:"event_text" db:"event_text"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	AvgEscalation float64   `json:"avg_escalation" db:"avg_escalation"`
}

// StoredEvent is an event held by the nearest-neighbour store.
type StoredEvent struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Neighbor is a raw nearest-neighbour hit: the stored event and its cosine
// distance from the query vector.
type Neighbor struct {
	ID       string
	Text     string
	Distance float64
}
