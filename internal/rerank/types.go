// Package rerank provides cross-encoder style rescoring of retrieval
// candidates. Rerankers are second-stage scorers: the retrieval pipeline
// hands them a small candidate pool and keeps going with its own ordering
// when they fail.
package rerank

import (
	"context"
)

// Result represents a single reranked result
type Result struct {
	// Index is the original position in the input documents slice
	Index int
	// Score is the relevance score (0.0 to 1.0)
	Score float64
	// Document is the original document content
	Document string
}

// Reranker reranks search results by jointly scoring query-document pairs.
type Reranker interface {
	// Rerank scores and reorders documents by relevance to the query.
	// Returns results sorted by score descending. topN limits the result
	// count (0 = return all).
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)

	// Available checks if the reranker is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// NoOp is a reranker that returns results in original order.
// Used when reranking is disabled.
type NoOp struct{}

// Rerank returns documents in original order with decreasing scores.
func (n *NoOp) Rerank(_ context.Context, _ string, documents []string, topN int) ([]Result, error) {
	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{
			Index:    i,
			Score:    1.0 - float64(i)*0.01,
			Document: doc,
		}
	}

	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}

	return results, nil
}

// Available always returns true for NoOp.
func (n *NoOp) Available(_ context.Context) bool {
	return true
}

// Close is a no-op.
func (n *NoOp) Close() error {
	return nil
}

// Verify interface implementation at compile time
var _ Reranker = (*NoOp)(nil)
