package models

import "fmt"

// Trait bounds for every leader profile dimension.
const (
	TraitMin = 0
	TraitMax = 10
)

// LeaderProfile is a persona: a fixed trait vector describing how a leader
// archetype tends to behave in a crisis. Profiles are seeded once and are
// read-only to the simulation engine.
type LeaderProfile struct {
	ID   string `json:"id" yaml:"id" db:"id"`
	Name string `json:"name" yaml:"name" db:"name"`

	// Behavioral traits, each on a 0-10 scale.
	Aggression       int `json:"aggression" yaml:"aggression" db:"aggression"`
	Diplomacy        int `json:"diplomacy" yaml:"diplomacy" db:"diplomacy"`
	RiskTolerance    int `json:"risk_tolerance" yaml:"risk_tolerance" db:"risk_tolerance"`
	DomesticPressure int `json:"domestic_pressure" yaml:"domestic_pressure" db:"domestic_pressure"`

	// EscalationThreshold is how much provocation it takes before the leader
	// escalates. Low values escalate easily.
	EscalationThreshold int `json:"escalation_threshold" yaml:"escalation_threshold" db:"escalation_threshold"`
}

// Traits returns the trait values keyed by their wire names, in a stable order
// suitable for iteration via TraitNames.
func (p LeaderProfile) Traits() map[string]int {
	return map[string]int{
		"aggression":           p.Aggression,
		"diplomacy":            p.Diplomacy,
		"risk_tolerance":       p.RiskTolerance,
		"domestic_pressure":    p.DomesticPressure,
		"escalation_threshold": p.EscalationThreshold,
	}
}

// TraitNames lists the trait keys in display order.
var TraitNames = []string{
	"aggression",
	"diplomacy",
	"risk_tolerance",
	"domestic_pressure",
	"escalation_threshold",
}

// Validate checks the profile has a name and every trait is within [0,10].
func (p LeaderProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("leader profile must have a name")
	}
	traits := p.Traits()
	for _, name := range TraitNames {
		v := traits[name]
		if v < TraitMin || v > TraitMax {
			return fmt.Errorf("leader %q: %s must be between %d and %d, got %d", p.Name, name, TraitMin, TraitMax, v)
		}
	}
	return nil
}
