package seed

import (
	"github.com/google/uuid"

	"github.com/nvandessel/polaris/internal/models"
)

// leaderNamespace derives stable leader ids so every install agrees on them.
var leaderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/nvandessel/polaris/leaders"))

// LeaderID returns the deterministic id for a seeded leader name.
func LeaderID(name string) string {
	return uuid.NewSHA1(leaderNamespace, []byte(name)).String()
}

// DefaultLeaders returns the four built-in leader archetypes.
func DefaultLeaders() []models.LeaderProfile {
	leaders := []models.LeaderProfile{
		{
			Name:                "Revisionist Expansionist",
			Aggression:          8,
			Diplomacy:           3,
			RiskTolerance:       8,
			DomesticPressure:    6,
			EscalationThreshold: 4, // escalates easily
		},
		{
			Name:                "Status-quo Diplomat",
			Aggression:          2,
			Diplomacy:           9,
			RiskTolerance:       3,
			DomesticPressure:    4,
			EscalationThreshold: 8,
		},
		{
			Name:                "Crisis Populist",
			Aggression:          6,
			Diplomacy:           4,
			RiskTolerance:       7,
			DomesticPressure:    9,
			EscalationThreshold: 5,
		},
		{
			Name:                "Isolationist Stabilizer",
			Aggression:          2,
			Diplomacy:           5,
			RiskTolerance:       2,
			DomesticPressure:    7,
			EscalationThreshold: 9, // avoids conflict
		},
	}
	for i := range leaders {
		leaders[i].ID = LeaderID(leaders[i].Name)
	}
	return leaders
}

// HistoricalEvents returns the reference crises embedded at seed time.
func HistoricalEvents() []string {
	return []string{
		"Naval blockade imposed on island nation, restricting essential supplies and military equipment",
		"Military forces mass at disputed border region following ethnic tensions",
		"Cyber attack disables critical infrastructure in capital city",
		"Disputed election results spark mass protests and international concern",
		"Aircraft shot down over contested airspace, casualties reported",
		"Trade embargo imposed following human rights violations",
		"Military coup overthrows democratically elected government",
		"Nuclear facility detected in violation of international agreements",
		"Border skirmish escalates with artillery exchanges",
		"Assassination of political leader triggers regional instability",
		"Refugee crisis overwhelms neighboring countries",
		"Naval vessels collide in disputed waters",
		"Economic sanctions target ruling elite and state institutions",
		"Peacekeeping forces attacked by unknown militants",
		"Territory annexed following disputed referendum",
	}
}
