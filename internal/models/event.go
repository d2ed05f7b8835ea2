package models

import "math"

// SimilarEvent is a retrieval hit: a previously embedded event and how close
// it is to the query. Derived fresh per query and never persisted.
type SimilarEvent struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	// Similarity is 1 - cosine distance, rounded to 3 decimal places.
	Similarity float64 `json:"similarity"`
}

// SimilarityFromDistance converts a cosine distance into a similarity rounded
// to 3 decimal places.
func SimilarityFromDistance(distance float64) float64 {
	return Round(1-distance, 3)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// EventTexts returns the text of each event, preserving order.
func EventTexts(events []SimilarEvent) []string {
	texts := make([]string, len(events))
	for i, e := range events {
		texts[i] = e.Text
	}
	return texts
}
