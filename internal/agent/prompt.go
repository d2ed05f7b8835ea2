package agent

import (
	"strconv"
	"strings"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/models"
)

// SystemPrompt builds the persona instructions for one leader: the trait
// sheet, the task, the retrieved context and the required JSON shape.
func SystemPrompt(profile models.LeaderProfile, similar []models.SimilarEvent) string {
	var b strings.Builder

	b.WriteString("You are simulating a world leader archetype analyzing a geopolitical crisis.\n\n")

	b.WriteString("## Your Leader Profile: ")
	b.WriteString(profile.Name)
	b.WriteString("\n\nBehavioral traits (scale 0-10):\n")
	writeTrait(&b, "Aggression", profile.Aggression)
	writeTrait(&b, "Diplomacy", profile.Diplomacy)
	writeTrait(&b, "Risk Tolerance", profile.RiskTolerance)
	writeTrait(&b, "Domestic Pressure Sensitivity", profile.DomesticPressure)
	writeTrait(&b, "Escalation Threshold", profile.EscalationThreshold)

	b.WriteString("\n## Your Task\n\n")
	b.WriteString("Analyze the crisis event and predict how this leader archetype would respond.\n")
	b.WriteString("Consider your traits carefully - they should influence your reasoning and decision.\n\n")

	b.WriteString("## Similar Historical Events (for context)\n")
	b.WriteString(RenderContext(similar))
	b.WriteString("\n\n")

	b.WriteString("## Response Format\n\n")
	b.WriteString("You MUST respond with valid JSON only, no other text:\n")
	b.WriteString("{\n")
	b.WriteString(`    "escalation_score": <float 0-10, where 10 is maximum escalation>,` + "\n")
	b.WriteString(`    "reaction": "<short action description, 2-5 words>",` + "\n")
	b.WriteString(`    "rationale": "<1-2 sentence explanation of why this leader would react this way>"` + "\n")
	b.WriteString("}\n")

	return b.String()
}

func writeTrait(b *strings.Builder, label string, value int) {
	b.WriteString("- ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(strconv.Itoa(value))
	b.WriteString("/10\n")
}

// RenderContext formats retrieved events one per line as
// "- {text} (similarity: {similarity})". An empty slice renders as a fixed
// sentinel line so the prompt never has an empty section.
func RenderContext(similar []models.SimilarEvent) string {
	if len(similar) == 0 {
		return constants.NoSimilarEventsFound
	}
	lines := make([]string, len(similar))
	for i, e := range similar {
		lines[i] = "- " + e.Text + " (similarity: " + formatSimilarity(e.Similarity) + ")"
	}
	return strings.Join(lines, "\n")
}

// formatSimilarity prints the shortest exact decimal, keeping one fractional
// digit for whole numbers so 1 renders as "1.0".
func formatSimilarity(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// UserMessage is the single user turn sent with the system prompt.
func UserMessage(eventText string) string {
	return "Crisis Event: " + eventText
}
