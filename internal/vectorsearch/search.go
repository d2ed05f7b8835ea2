// Package vectorsearch ranks stored event embeddings against a query vector.
package vectorsearch

import (
	"sort"

	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/vecmath"
)

// Nearest returns the limit stored events closest to queryVec by cosine distance,
// ordered by ascending distance. Ties keep the candidates' input order.
// Events whose embedding length differs from the query are skipped and
// counted in skipped.
func Nearest(queryVec []float32, candidates []models.StoredEvent, limit int) (_ []models.Neighbor, skipped int) {
	results := make([]models.Neighbor, 0, len(candidates))
	if len(queryVec) == 0 || limit <= 0 {
		return results, 0
	}

	for _, c := range candidates {
		if len(c.Embedding) != len(queryVec) {
			skipped++
			continue
		}
		results = append(results, models.Neighbor{
			ID:       c.ID,
			Text:     c.Text,
			Distance: vecmath.CosineDistance(queryVec, c.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if limit > len(results) {
		limit = len(results)
	}
	return results[:limit], skipped
}
