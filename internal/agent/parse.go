package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/llm"
	"github.com/nvandessel/polaris/internal/models"
)

// Parsed is the structured content recovered from one model response.
type Parsed struct {
	EscalationScore float64
	Reaction        string
	Rationale       string
	Outcome         models.Outcome
}

// ParseJudgment extracts a judgment from raw model output. It never fails:
// output that is not a JSON object becomes a fallback judgment carrying the
// first 200 characters of the raw text as its rationale.
//
// The trimmed output is decoded as JSON first. Only when that fails is a
// fenced or embedded object extracted, so fences inside string fields stay
// intact. The score is returned unclamped; callers clamp when building the
// Judgment.
func ParseJudgment(raw string) Parsed {
	fields, ok := decodeObject(strings.TrimSpace(raw))
	if !ok {
		if fields, ok = decodeObject(llm.ExtractJSON(raw)); !ok {
			return fallback(raw)
		}
	}

	return Parsed{
		EscalationScore: coerceScore(fields["escalation_score"]),
		Reaction:        stringField(fields, "reaction", constants.DefaultReaction),
		Rationale:       stringField(fields, "rationale", constants.DefaultRationale),
		Outcome:         models.OutcomeParsed,
	}
}

// decodeObject decodes s as a JSON object. Arrays, scalars and empty input
// are rejected.
func decodeObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func fallback(raw string) Parsed {
	return Parsed{
		EscalationScore: constants.NeutralEscalationScore,
		Reaction:        constants.FallbackReaction,
		Rationale:       truncateRunes(raw, constants.MaxFallbackRationaleLen),
		Outcome:         models.OutcomeFallback,
	}
}

// coerceScore converts a decoded JSON value to a score. Numbers pass through,
// numeric strings are parsed, booleans map to 1 and 0. Anything else,
// including null, is the neutral score.
func coerceScore(v any) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return constants.NeutralEscalationScore
		}
		return f
	case bool:
		if s {
			return 1
		}
		return 0
	default:
		return constants.NeutralEscalationScore
	}
}

// stringField returns fields[key] as text. A missing or null key yields def;
// non-string values are rendered with their default formatting.
func stringField(fields map[string]any, key, def string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
