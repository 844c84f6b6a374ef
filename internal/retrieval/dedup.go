package retrieval

import (
	"strings"
)

// deduplicate drops candidates whose Jaccard word-set similarity against any
// earlier-accepted candidate meets the threshold. First-seen order survives.
//
// Pairwise comparison is O(n^2) over the candidate set, which is small here
// (post-over-fetch, typically at most a few hundred).
func deduplicate(r *Result, threshold float64) *Result {
	if r.Len() < 2 {
		return r
	}

	accepted := make([]map[string]struct{}, 0, r.Len())
	keep := make([]int, 0, r.Len())

	for i, doc := range r.Documents {
		words := wordSet(doc)

		duplicate := false
		for _, prev := range accepted {
			if jaccard(words, prev) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		accepted = append(accepted, words)
		keep = append(keep, i)
	}

	if len(keep) == r.Len() {
		return r
	}
	return selectIndices(r, keep)
}

// wordSet builds the normalized word set of a passage.
func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard computes |a ∩ b| / |a ∪ b|. Two empty sets count as identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	var intersection int
	for w := range small {
		if _, ok := large[w]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// selectIndices projects a Result onto the given row indices, keeping every
// populated parallel array aligned.
func selectIndices(r *Result, keep []int) *Result {
	out := &Result{SearchType: r.SearchType}

	out.IDs = make([]string, len(keep))
	for i, idx := range keep {
		out.IDs[i] = r.IDs[idx]
	}
	if len(r.Documents) > 0 {
		out.Documents = make([]string, len(keep))
		for i, idx := range keep {
			out.Documents[i] = r.Documents[idx]
		}
	}
	if len(r.Metadata) > 0 {
		out.Metadata = make([]map[string]string, len(keep))
		for i, idx := range keep {
			out.Metadata[i] = r.Metadata[idx]
		}
	}
	if len(r.Scores) > 0 {
		out.Scores = make([]float64, len(keep))
		for i, idx := range keep {
			out.Scores[i] = r.Scores[idx]
		}
	}
	if len(r.Distances) > 0 {
		out.Distances = make([]float64, len(keep))
		for i, idx := range keep {
			out.Distances[i] = r.Distances[idx]
		}
	}
	if len(r.RerankScores) > 0 {
		out.RerankScores = make([]float64, len(keep))
		for i, idx := range keep {
			out.RerankScores[i] = r.RerankScores[idx]
		}
	}
	if len(r.VectorScores) > 0 {
		out.VectorScores = make([]float64, len(keep))
		for i, idx := range keep {
			out.VectorScores[i] = r.VectorScores[idx]
		}
	}
	if len(r.KeywordScores) > 0 {
		out.KeywordScores = make([]float64, len(keep))
		for i, idx := range keep {
			out.KeywordScores[i] = r.KeywordScores[idx]
		}
	}
	return out
}
