// Package constants provides named constants used throughout the polaris codebase.
// This centralizes magic numbers and fixed strings for better maintainability.
package constants

// Retrieval constants
const (
	// DefaultSimilarLimit is how many historical events each simulation retrieves
	// as shared context for every agent.
	DefaultSimilarLimit = 3

	// SimilarityPrecision is the number of decimal places similarity scores are rounded to.
	SimilarityPrecision = 3

	// EmbeddingDimensions is the vector size of the default embedding model.
	EmbeddingDimensions = 1536
)

// Agent constants
const (
	// DefaultMaxTokens is the output token budget for one agent generation call.
	DefaultMaxTokens = 500

	// NeutralEscalationScore is substituted whenever a score cannot be extracted.
	NeutralEscalationScore = 5.0

	// MaxFallbackRationaleLen caps the raw-output excerpt used as a fallback rationale.
	// Counted in characters, not bytes.
	MaxFallbackRationaleLen = 200
)

// Fixed strings used when model output is missing fields or unusable.
const (
	DefaultReaction      = "Unknown"
	DefaultRationale     = "No rationale provided"
	FallbackReaction     = "Response unclear"
	UnavailableReaction  = "Agent unavailable"
	NoSimilarEventsFound = "No similar events found."
)

// Simulation request constants
const (
	// MinEventTextLen and MaxEventTextLen bound the crisis text accepted by the service.
	MinEventTextLen = 10
	MaxEventTextLen = 2000

	// DefaultHistoryLimit is how many past simulations the history views return.
	DefaultHistoryLimit = 20

	// AverageEscalationPrecision is the rounding applied to history averages.
	AverageEscalationPrecision = 2
)

// Notification constants
const (
	// SimulationCompletedSubject is the NATS subject completed simulations are published on.
	SimulationCompletedSubject = "polaris.simulations.completed"
)
