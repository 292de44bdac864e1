// Package match scores content items against a user's style corpus by
// cosine similarity. An item's score is the arithmetic mean of its
// similarities to every style example, rewarding content that resembles
// the user's style broadly rather than one idiosyncratic post.
package match

import (
	"math"
	"sort"

	"creatorpulse/internal/domain"
)

const topExamples = 3

// Matcher holds the scoring policy knobs. It carries no mutable state,
// so concurrent runs for different users can share a value safely.
type Matcher struct {
	Threshold  float64
	MaxMatches int
}

// Match scores each embedded item against every style example and
// returns results with mean score >= Threshold, sorted descending by
// score and truncated to MaxMatches. The three closest examples ride
// along for prompt construction. Items without an embedding, and runs
// with no valid style examples, produce nothing.
func (m Matcher) Match(items []domain.ContentItem, examples []domain.StyleExample) []domain.MatchResult {
	valid := examples[:0:0]
	for _, ex := range examples {
		if len(ex.Embedding) > 0 {
			valid = append(valid, ex)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	results := make([]domain.MatchResult, 0, len(items))
	for _, item := range items {
		if len(item.Embedding) == 0 {
			continue
		}

		scored := make([]domain.ScoredExample, len(valid))
		var sum float64
		for i, ex := range valid {
			sim := Cosine(item.Embedding, ex.Embedding)
			scored[i] = domain.ScoredExample{Example: ex, Similarity: sim}
			sum += sim
		}
		mean := sum / float64(len(valid))
		if mean < m.Threshold {
			continue
		}

		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Similarity > scored[j].Similarity
		})
		if len(scored) > topExamples {
			scored = scored[:topExamples]
		}

		results = append(results, domain.MatchResult{
			Item:        item,
			Score:       mean,
			TopExamples: scored,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if m.MaxMatches > 0 && len(results) > m.MaxMatches {
		results = results[:m.MaxMatches]
	}
	return results
}

// Cosine computes the cosine similarity of two vectors. Mismatched
// lengths and zero-magnitude vectors score 0 rather than NaN, guarding
// against degenerate embeddings.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
