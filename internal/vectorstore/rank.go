// Package vectorstore holds the scoring shared by the brute-force indexes.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"bookrag/internal/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Candidate is a stored record considered for a query.
type Candidate struct {
	Vector  []float32
	Payload domain.ChunkPayload
}

// Rank scores candidates against the query and applies the filter, the
// inclusive score threshold and the limit. Ties keep storage order.
func Rank(query []float32, candidates []Candidate, opts domain.SearchOptions) ([]domain.ScoredRecord, error) {
	out := make([]domain.ScoredRecord, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			return nil, fmt.Errorf("%w: index has %d, query has %d", domain.ErrDimensionMismatch, len(c.Vector), len(query))
		}
		if opts.Filter != nil && !opts.Filter.Matches(c.Payload) {
			continue
		}
		score := Cosine(query, c.Vector)
		if opts.ScoreThreshold != nil && score < *opts.ScoreThreshold {
			continue
		}
		out = append(out, domain.ScoredRecord{Payload: c.Payload, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
