// Package store provides the vector backend for retrieval: SQLite document
// persistence plus per-collection HNSW vector indexes. The retrieval engine
// consumes it through narrow capability interfaces.
package store

import (
	"time"
)

// Document is a stored passage with its metadata.
type Document struct {
	ID         string
	Collection string
	TenantID   string
	Content    string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// SearchResult holds parallel arrays describing a nearest-neighbor search.
// All populated arrays have identical length.
type SearchResult struct {
	IDs       []string
	Documents []string
	Metadata  []map[string]string
	Distances []float64 // lower is better
	Scores    []float64 // normalized 0-1, higher is better
}

// Len returns the number of results.
func (r *SearchResult) Len() int {
	return len(r.IDs)
}

// Filter restricts search results by metadata equality and an optional
// time range over a metadata field holding RFC3339 timestamps.
type Filter struct {
	// Equals is matched exactly against document metadata.
	Equals map[string]string

	// TimeField names the metadata field carrying the document timestamp.
	// Zero Start/End bounds are open.
	TimeField string
	Start     time.Time
	End       time.Time
}

// IsZero reports whether the filter imposes no constraints.
func (f Filter) IsZero() bool {
	return len(f.Equals) == 0 && f.TimeField == ""
}

// Matches reports whether a document's metadata satisfies the filter.
func (f Filter) Matches(meta map[string]string) bool {
	for k, want := range f.Equals {
		if meta[k] != want {
			return false
		}
	}

	if f.TimeField != "" {
		raw, ok := meta[f.TimeField]
		if !ok {
			return false
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return false
		}
		if !f.Start.IsZero() && ts.Before(f.Start) {
			return false
		}
		if !f.End.IsZero() && ts.After(f.End) {
			return false
		}
	}

	return true
}

// VectorIndexConfig configures the HNSW vector index.
type VectorIndexConfig struct {
	// Dimensions is the embedding dimension; fixed per configured model.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (default: "cos").
	Metric string

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for the given dimension.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}
