package llm

import (
	"regexp"
	"strings"
)

var (
	jsonBlockRe    = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\s*```")
	genericBlockRe = regexp.MustCompile("(?s)```\\s*\\n?(.*?)\\s*```")
)

// ExtractJSON extracts JSON content from a string, handling markdown code blocks.
// It looks for JSON wrapped in ```json...``` or ```...``` blocks, or returns
// the trimmed input if it appears to be raw JSON. Returns "" otherwise.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if matches := jsonBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	if matches := genericBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	return ""
}
