// Package retrieval implements hybrid retrieval: a query is answered from a
// dense vector index and an in-memory BM25 keyword index, the two ranked
// lists are fused, near-duplicates dropped, and the survivors optionally
// reranked by a cross-encoder.
package retrieval

import (
	"fmt"
	"time"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// SearchType selects the retrieval strategy.
type SearchType string

const (
	SearchTypeVector  SearchType = "vector"
	SearchTypeKeyword SearchType = "keyword"
	SearchTypeHybrid  SearchType = "hybrid"
)

// FusionMethod selects how the vector and keyword ranked lists combine.
type FusionMethod string

const (
	FusionRRF      FusionMethod = "rrf"
	FusionWeighted FusionMethod = "weighted"
	FusionMean     FusionMethod = "mean"
)

// Retrieval defaults
const (
	DefaultTopK = 10

	// DefaultRRFK is the standard RRF smoothing constant. k=60 is
	// empirically validated across domains (Azure AI Search, OpenSearch).
	DefaultRRFK = 60

	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3

	// DefaultDedupThreshold is the Jaccard similarity above which two
	// passages count as duplicates.
	DefaultDedupThreshold = 0.95

	DefaultRerankTopN = 20

	// BM25 parameter defaults
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// TimeFilter restricts results to documents whose metadata timestamp field
// falls within [Start, End]. Zero bounds are open.
type TimeFilter struct {
	Field string
	Start time.Time
	End   time.Time
}

// Config is the per-call retrieval configuration. A zero Config is usable:
// WithDefaults fills in every unset knob.
type Config struct {
	SearchType SearchType
	TopK       int

	// VectorWeight and KeywordWeight are normalized to sum to 1.0 by
	// WithDefaults for any positive input pair.
	VectorWeight  float64
	KeywordWeight float64
	FusionMethod  FusionMethod

	RerankEnabled bool

	// RerankProvider names the provider this call expects. Providers are
	// constructed once at service build time; a mismatch downgrades to no
	// reranking with a warning instead of failing the request. Empty
	// accepts whatever the service carries.
	RerankProvider  string
	RerankTopN      int
	RerankThreshold float64

	QueryPreprocessingEnabled bool
	QueryExpansionEnabled     bool

	MetadataFilter map[string]string
	TimeFilter     TimeFilter

	DeduplicationEnabled   bool
	DeduplicationThreshold float64

	// BM25 parameters for keyword index construction
	K1 float64
	B  float64

	// RRFK is the RRF smoothing constant
	RRFK int
}

// DefaultConfig returns the standard hybrid configuration.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills unset fields and normalizes the fusion weights so they
// sum to 1.0.
func (c Config) WithDefaults() Config {
	if c.SearchType == "" {
		c.SearchType = SearchTypeHybrid
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.FusionMethod == "" {
		c.FusionMethod = FusionRRF
	}
	if c.VectorWeight <= 0 && c.KeywordWeight <= 0 {
		c.VectorWeight = DefaultVectorWeight
		c.KeywordWeight = DefaultKeywordWeight
	}
	total := c.VectorWeight + c.KeywordWeight
	if total > 0 {
		c.VectorWeight /= total
		c.KeywordWeight /= total
	}
	if c.RerankTopN <= 0 {
		c.RerankTopN = DefaultRerankTopN
	}
	if c.DeduplicationThreshold <= 0 {
		c.DeduplicationThreshold = DefaultDedupThreshold
	}
	if c.K1 <= 0 {
		c.K1 = DefaultK1
	}
	if c.B <= 0 {
		c.B = DefaultB
	}
	if c.RRFK <= 0 {
		c.RRFK = DefaultRRFK
	}
	return c
}

// Validate rejects unknown enum values. Called per retrieve so a bad config
// fails loudly instead of silently falling back.
func (c Config) Validate() error {
	switch c.SearchType {
	case SearchTypeVector, SearchTypeKeyword, SearchTypeHybrid:
	default:
		return derrors.ValidationError(
			fmt.Sprintf("unknown search type %q", c.SearchType), nil)
	}
	switch c.FusionMethod {
	case FusionRRF, FusionWeighted, FusionMean:
	default:
		return derrors.ValidationError(
			fmt.Sprintf("unknown fusion method %q", c.FusionMethod), nil)
	}
	return nil
}

// Result holds ranked retrieval output as parallel arrays. All populated
// arrays have identical length at every pipeline stage; a mismatch is a
// programming error, not a recoverable condition.
type Result struct {
	IDs       []string
	Documents []string
	Metadata  []map[string]string

	// Scores are normalized to 0-1, higher better.
	Scores []float64

	// Distances are raw vector distances, lower better. Empty for
	// keyword-only retrieval.
	Distances []float64

	// RerankScores is populated only when reranking ran. Entries that were
	// never sent to the reranker carry 0.
	RerankScores []float64

	// VectorScores and KeywordScores carry the per-source scores after
	// fusion, 0.0 for the side that did not produce the document.
	VectorScores  []float64
	KeywordScores []float64

	SearchType SearchType
}

// Len returns the number of results.
func (r *Result) Len() int {
	return len(r.IDs)
}

// Validate checks the parallel-array invariant.
func (r *Result) Validate() error {
	n := len(r.IDs)
	check := func(name string, length int) error {
		if length != 0 && length != n {
			return derrors.New(derrors.ErrCodeArrayMismatch,
				fmt.Sprintf("%s length %d does not match ids length %d", name, length, n), nil)
		}
		return nil
	}

	for _, c := range []struct {
		name   string
		length int
	}{
		{"documents", len(r.Documents)},
		{"metadata", len(r.Metadata)},
		{"scores", len(r.Scores)},
		{"distances", len(r.Distances)},
		{"rerank_scores", len(r.RerankScores)},
		{"vector_scores", len(r.VectorScores)},
		{"keyword_scores", len(r.KeywordScores)},
	} {
		if err := check(c.name, c.length); err != nil {
			return err
		}
	}
	return nil
}

// Truncate trims every populated parallel array to at most n entries,
// preserving order.
func (r *Result) Truncate(n int) {
	if n < 0 || r.Len() <= n {
		return
	}
	r.IDs = r.IDs[:n]
	if len(r.Documents) > n {
		r.Documents = r.Documents[:n]
	}
	if len(r.Metadata) > n {
		r.Metadata = r.Metadata[:n]
	}
	if len(r.Scores) > n {
		r.Scores = r.Scores[:n]
	}
	if len(r.Distances) > n {
		r.Distances = r.Distances[:n]
	}
	if len(r.RerankScores) > n {
		r.RerankScores = r.RerankScores[:n]
	}
	if len(r.VectorScores) > n {
		r.VectorScores = r.VectorScores[:n]
	}
	if len(r.KeywordScores) > n {
		r.KeywordScores = r.KeywordScores[:n]
	}
}
