package rerank

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/keyword"
)

// LocalConfig holds configuration for the local lexical reranker.
type LocalConfig struct {
	// PoolSize bounds concurrent scoring workers. Zero means GOMAXPROCS.
	PoolSize int
}

// Local is a lexical reranker that scores query-document pairs from term
// overlap, with no external service. It is a fallback tier: cheaper and
// weaker than a hosted cross-encoder, but it works offline.
type Local struct {
	pool *ants.Pool

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Reranker = (*Local)(nil)

// NewLocal creates a local reranker with a bounded worker pool.
func NewLocal(cfg LocalConfig) (*Local, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, derrors.New(derrors.ErrCodeInternal, "failed to create reranker pool", err)
	}

	return &Local{pool: pool}, nil
}

// Rerank scores documents concurrently and returns them sorted by score
// descending. Ties keep the input order.
func (l *Local) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	l.mu.RUnlock()

	if len(documents) == 0 {
		return []Result{}, nil
	}

	queryTerms := keyword.DefaultTokenizer(query)
	if len(queryTerms) == 0 {
		noop := &NoOp{}
		return noop.Rerank(ctx, query, documents, topN)
	}

	results := make([]Result, len(documents))
	var wg sync.WaitGroup

	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		i, doc := i, doc
		wg.Add(1)
		submitErr := l.pool.Submit(func() {
			defer wg.Done()
			results[i] = Result{
				Index:    i,
				Score:    lexicalScore(queryTerms, doc),
				Document: doc,
			}
		})
		if submitErr != nil {
			wg.Done()
			return nil, derrors.New(derrors.ErrCodeInternal, "failed to submit rerank task", submitErr)
		}
	}

	wg.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}

	return results, nil
}

// lexicalScore rates a document against query terms in [0, 1]. Coverage of
// distinct query terms dominates; repeated occurrences add a small
// log-damped bonus so verbose documents cannot win on repetition alone.
func lexicalScore(queryTerms []string, document string) float64 {
	docTerms := keyword.DefaultTokenizer(document)
	if len(docTerms) == 0 {
		return 0
	}

	docFreq := make(map[string]int, len(docTerms))
	for _, t := range docTerms {
		docFreq[t]++
	}

	distinct := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		distinct[t] = struct{}{}
	}

	var covered int
	var freqBonus float64
	for t := range distinct {
		if n := docFreq[t]; n > 0 {
			covered++
			freqBonus += math.Log1p(float64(n))
		}
	}
	if covered == 0 {
		return 0
	}

	coverage := float64(covered) / float64(len(distinct))
	bonus := freqBonus / (freqBonus + float64(len(distinct)))
	return 0.8*coverage + 0.2*bonus
}

// Available reports pool health.
func (l *Local) Available(_ context.Context) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.closed
}

// Close releases the worker pool. Idempotent.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.pool.Release()
	return nil
}
