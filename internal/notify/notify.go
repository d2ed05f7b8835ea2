// Package notify broadcasts finished simulations to interested subscribers.
package notify

import (
	"context"
	"time"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/models"
)

// SimulationCompleted is the message published after a simulation is stored.
type SimulationCompleted struct {
	SimulationID  string            `json:"simulation_id"`
	EventText     string            `json:"event_text"`
	CreatedAt     time.Time         `json:"created_at"`
	AvgEscalation float64           `json:"avg_escalation"`
	Degraded      int               `json:"degraded"`
	Results       []models.Judgment `json:"results"`
}

// NewSimulationCompleted summarizes a stored simulation for publishing.
func NewSimulationCompleted(resp models.SimulationResponse) SimulationCompleted {
	msg := SimulationCompleted{
		SimulationID: resp.SimulationID,
		EventText:    resp.EventText,
		CreatedAt:    resp.CreatedAt,
		Results:      resp.Results,
	}
	var sum float64
	var scored int
	for _, j := range resp.Results {
		if j.Degraded() {
			msg.Degraded++
		}
		// Unavailable placeholders carry no real score.
		if j.Outcome == models.OutcomeUnavailable {
			continue
		}
		sum += j.EscalationScore
		scored++
	}
	if scored > 0 {
		msg.AvgEscalation = models.Round(sum/float64(scored), constants.AverageEscalationPrecision)
	}
	return msg
}

// Publisher delivers simulation notifications.
type Publisher interface {
	Publish(ctx context.Context, msg SimulationCompleted) error
	Close() error
}

// NopPublisher discards every message.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, SimulationCompleted) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
