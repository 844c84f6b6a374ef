package retrieval

import (
	"sort"
)

// fusedDoc is the per-document fusion state. Ranks are 1-indexed; 0 means
// the source did not return the document.
type fusedDoc struct {
	id       string
	document string
	metadata map[string]string
	distance float64

	vecRank  int
	vecScore float64
	kwRank   int
	kwScore  float64

	fused float64
}

// fuse combines the vector and keyword ranked lists into one ranked list.
// Either input may be nil or empty; fusion then degrades to whatever the
// surviving branch produced, still scored by the configured method.
//
// Payload (text, metadata, distance) prefers the vector result when a
// document appears in both lists.
func fuse(vec, kw *Result, cfg Config) *Result {
	vecLen, kwLen := 0, 0
	if vec != nil {
		vecLen = vec.Len()
	}
	if kw != nil {
		kwLen = kw.Len()
	}
	if vecLen == 0 && kwLen == 0 {
		return &Result{SearchType: SearchTypeHybrid}
	}

	docs := make(map[string]*fusedDoc, vecLen+kwLen)
	order := make([]*fusedDoc, 0, vecLen+kwLen)

	for i := 0; i < vecLen; i++ {
		d := &fusedDoc{
			id:       vec.IDs[i],
			document: vec.Documents[i],
			metadata: vec.Metadata[i],
			vecRank:  i + 1,
			vecScore: vec.Scores[i],
		}
		if len(vec.Distances) > i {
			d.distance = vec.Distances[i]
		}
		docs[d.id] = d
		order = append(order, d)
	}

	for i := 0; i < kwLen; i++ {
		id := kw.IDs[i]
		d, ok := docs[id]
		if !ok {
			d = &fusedDoc{
				id:       id,
				document: kw.Documents[i],
				metadata: kw.Metadata[i],
			}
			docs[id] = d
			order = append(order, d)
		}
		d.kwRank = i + 1
		d.kwScore = kw.Scores[i]
	}

	for _, d := range order {
		d.fused = fusedScore(d, cfg)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return rankBefore(order[i], order[j])
	})

	normalizeFused(order)

	out := &Result{
		SearchType:    SearchTypeHybrid,
		IDs:           make([]string, len(order)),
		Documents:     make([]string, len(order)),
		Metadata:      make([]map[string]string, len(order)),
		Scores:        make([]float64, len(order)),
		Distances:     make([]float64, len(order)),
		VectorScores:  make([]float64, len(order)),
		KeywordScores: make([]float64, len(order)),
	}
	for i, d := range order {
		out.IDs[i] = d.id
		out.Documents[i] = d.document
		out.Metadata[i] = d.metadata
		out.Scores[i] = d.fused
		out.Distances[i] = d.distance
		out.VectorScores[i] = d.vecScore
		out.KeywordScores[i] = d.kwScore
	}
	return out
}

// fusedScore computes the combined score for one document. A source that
// did not return the document contributes 0.
func fusedScore(d *fusedDoc, cfg Config) float64 {
	switch cfg.FusionMethod {
	case FusionWeighted:
		return cfg.VectorWeight*d.vecScore + cfg.KeywordWeight*d.kwScore
	case FusionMean:
		return (d.vecScore + d.kwScore) / 2
	default: // FusionRRF
		var score float64
		if d.vecRank > 0 {
			score += cfg.VectorWeight / float64(cfg.RRFK+d.vecRank)
		}
		if d.kwRank > 0 {
			score += cfg.KeywordWeight / float64(cfg.RRFK+d.kwRank)
		}
		return score
	}
}

// rankBefore reports whether a ranks before b. Deterministic ordering:
// higher fused score, then presence in both lists, then higher vector
// score, then lexicographic ID.
func rankBefore(a, b *fusedDoc) bool {
	if a.fused != b.fused {
		return a.fused > b.fused
	}
	aBoth := a.vecRank > 0 && a.kwRank > 0
	bBoth := b.vecRank > 0 && b.kwRank > 0
	if aBoth != bBoth {
		return aBoth
	}
	if a.vecScore != b.vecScore {
		return a.vecScore > b.vecScore
	}
	return a.id < b.id
}

// normalizeFused scales fused scores so the best document scores 1.0.
func normalizeFused(order []*fusedDoc) {
	if len(order) == 0 {
		return
	}
	max := order[0].fused
	if max == 0 {
		return
	}
	for _, d := range order {
		d.fused /= max
	}
}
