package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/t-simwa/documind-document-analyzer-sub000/internal/embed"
	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/keyword"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/rerank"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/store"
)

// keywordOverFetch widens BM25 searches so hits lost to metadata filtering
// still leave topK survivors.
const keywordOverFetch = 2

// DefaultRequestTimeout bounds a hybrid retrieve end to end, covering both
// concurrent branches.
const DefaultRequestTimeout = 30 * time.Second

// VectorBackend is the set of vector-store capabilities the service
// consumes. store.Local satisfies it.
type VectorBackend interface {
	Search(ctx context.Context, collection string, embedding []float32, topK int, tenantID string, filter store.Filter) (*store.SearchResult, error)
	GetDocument(ctx context.Context, collection, tenantID, id string) (*store.Document, error)
	ListDocumentIDs(ctx context.Context, collection, tenantID string) ([]string, error)
	AddDocuments(ctx context.Context, collection string, docs []*store.Document, embeddings [][]float32) error
	DeleteDocuments(ctx context.Context, collection string, ids []string) error
}

// Service orchestrates hybrid retrieval. The per-(tenant, collection)
// keyword indexes are owned here as explicit instance state, guarded by the
// keyword manager, never as package globals.
type Service struct {
	backend   VectorBackend
	embedder  embed.Embedder
	reranker  rerank.Reranker
	provider  string
	keywords  *keyword.Manager
	optimizer *QueryOptimizer
	logger    *slog.Logger
	timeout   time.Duration
}

// ServiceOption configures the retrieval service.
type ServiceOption func(*Service)

// WithReranker sets the reranker and the provider name it was built for.
// Providers resolve once here, not per call.
func WithReranker(provider string, r rerank.Reranker) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.reranker = r
			s.provider = provider
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestTimeout sets the overall hybrid retrieve deadline.
func WithRequestTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithOptimizer replaces the default query optimizer.
func WithOptimizer(o *QueryOptimizer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.optimizer = o
		}
	}
}

// NewService creates a retrieval service. backend and embedder are required.
func NewService(backend VectorBackend, embedder embed.Embedder, opts ...ServiceOption) (*Service, error) {
	if backend == nil {
		return nil, derrors.ConfigError("vector backend is required", nil)
	}
	if embedder == nil {
		return nil, derrors.ConfigError("embedder is required", nil)
	}

	s := &Service{
		backend:   backend,
		embedder:  embedder,
		reranker:  &rerank.NoOp{},
		keywords:  keyword.NewManager(),
		optimizer: NewQueryOptimizer(),
		logger:    slog.Default(),
		timeout:   DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Retrieve turns a natural-language query into a ranked, deduplicated,
// optionally reranked list of passages from collection.
func (s *Service) Retrieve(ctx context.Context, query, collection string, cfg Config, tenantID string) (*Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return &Result{SearchType: cfg.SearchType}, nil
	}

	baseQuery := query
	if cfg.QueryPreprocessingEnabled {
		baseQuery = s.optimizer.Preprocess(baseQuery, true, false)
	}

	// Expansion bridges the keyword vocabulary gap. The vector branch keeps
	// the unexpanded query: the embedding model handles synonymy itself,
	// and appended synonyms only blur the embedding.
	keywordQuery := baseQuery
	if cfg.QueryExpansionEnabled {
		keywordQuery = s.optimizer.Expand(baseQuery)
		if keywordQuery != baseQuery {
			s.logger.Debug("query_expanded",
				slog.String("original", baseQuery),
				slog.String("expanded", keywordQuery))
		}
	}

	filter := store.Filter{
		Equals:    cfg.MetadataFilter,
		TimeField: cfg.TimeFilter.Field,
		Start:     cfg.TimeFilter.Start,
		End:       cfg.TimeFilter.End,
	}

	start := time.Now()

	var (
		res *Result
		err error
	)
	switch cfg.SearchType {
	case SearchTypeVector:
		res, err = s.vectorSearch(ctx, baseQuery, collection, tenantID, filter, cfg.TopK)
	case SearchTypeKeyword:
		res, err = s.keywordSearch(ctx, keywordQuery, collection, tenantID, filter, cfg)
	case SearchTypeHybrid:
		res, err = s.hybridSearch(ctx, baseQuery, keywordQuery, collection, tenantID, filter, cfg)
	}
	if err != nil {
		return nil, err
	}

	if cfg.DeduplicationEnabled {
		before := res.Len()
		res = deduplicate(res, cfg.DeduplicationThreshold)
		if res.Len() < before {
			s.logger.Debug("deduplicated_results",
				slog.Int("before", before),
				slog.Int("after", res.Len()))
		}
	}

	if cfg.RerankEnabled {
		res = s.rerankResults(ctx, baseQuery, res, cfg)
	}

	res.Truncate(cfg.TopK)

	if err := res.Validate(); err != nil {
		return nil, err
	}

	s.logger.Debug("retrieve_complete",
		slog.String("collection", collection),
		slog.String("search_type", string(cfg.SearchType)),
		slog.Int("results", res.Len()),
		slog.Duration("elapsed", time.Since(start)))

	return res, nil
}

// vectorSearch embeds the query and searches the vector backend.
func (s *Service) vectorSearch(ctx context.Context, query, collection, tenantID string, filter store.Filter, topK int) (*Result, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	sr, err := s.backend.Search(ctx, collection, embedding, topK, tenantID, filter)
	if err != nil {
		return nil, err
	}

	res := &Result{
		SearchType:   SearchTypeVector,
		IDs:          sr.IDs,
		Documents:    sr.Documents,
		Metadata:     sr.Metadata,
		Distances:    sr.Distances,
		Scores:       sr.Scores,
		VectorScores: append([]float64(nil), sr.Scores...),
	}
	return res, nil
}

// keywordSearch runs BM25 over the per-(tenant, collection) index, hydrates
// hits from the document store, filters in memory (the index carries no
// metadata), and normalizes scores by the batch maximum.
//
// An index that cannot be built degrades to zero keyword candidates rather
// than failing the request.
func (s *Service) keywordSearch(ctx context.Context, query, collection, tenantID string, filter store.Filter, cfg Config) (*Result, error) {
	idx, err := s.ensureKeywordIndex(ctx, collection, tenantID, cfg)
	if err != nil {
		s.logger.Warn("keyword_index_unavailable, proceeding without keyword candidates",
			slog.String("collection", collection),
			slog.String("error", err.Error()))
		return &Result{SearchType: SearchTypeKeyword}, nil
	}

	hits := idx.Search(query, cfg.TopK*keywordOverFetch)
	if len(hits) == 0 {
		return &Result{SearchType: SearchTypeKeyword}, nil
	}

	res := &Result{SearchType: SearchTypeKeyword}
	var maxScore float64
	for _, hit := range hits {
		doc, err := s.backend.GetDocument(ctx, collection, tenantID, hit.DocID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue // indexed but since deleted from the store
		}
		if !filter.Matches(doc.Metadata) {
			continue
		}

		res.IDs = append(res.IDs, doc.ID)
		res.Documents = append(res.Documents, doc.Content)
		res.Metadata = append(res.Metadata, doc.Metadata)
		res.Scores = append(res.Scores, hit.Score)
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	if maxScore > 0 {
		for i := range res.Scores {
			res.Scores[i] /= maxScore
		}
	}
	res.KeywordScores = append([]float64(nil), res.Scores...)
	return res, nil
}

// hybridSearch launches the vector and keyword branches concurrently under
// one deadline and joins both before fusing. A single failed branch degrades
// to partial fusion; the request fails only when both branches fail.
func (s *Service) hybridSearch(ctx context.Context, vectorQuery, keywordQuery, collection, tenantID string, filter store.Filter, cfg Config) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var (
		vecRes, kwRes *Result
		vecErr, kwErr error
	)

	g.Go(func() error {
		vecRes, vecErr = s.vectorSearch(gctx, vectorQuery, collection, tenantID, filter, cfg.TopK)
		return nil // branch errors degrade, they do not cancel the sibling
	})

	g.Go(func() error {
		kwRes, kwErr = s.keywordSearch(gctx, keywordQuery, collection, tenantID, filter, cfg)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, derrors.TimeoutError("hybrid retrieval deadline elapsed", err)
	}

	if vecErr != nil && kwErr != nil {
		return nil, errors.Join(vecErr, kwErr)
	}
	if vecErr != nil {
		s.logger.Warn("vector branch failed, fusing keyword results only",
			slog.String("error", vecErr.Error()))
	}
	if kwErr != nil {
		s.logger.Warn("keyword branch failed, fusing vector results only",
			slog.String("error", kwErr.Error()))
	}

	return fuse(vecRes, kwRes, cfg), nil
}

// rerankResults reorders the top RerankTopN candidates with the configured
// reranker. Candidates beyond topN keep their original relative order behind
// the reranked block. Every failure path degrades to the unreranked result.
func (s *Service) rerankResults(ctx context.Context, query string, res *Result, cfg Config) *Result {
	if res.Len() < 2 {
		return res
	}
	if _, noop := s.reranker.(*rerank.NoOp); noop {
		// NoOp fabricates ordering scores; thresholding them would drop
		// valid results, so no configured reranker means no rerank stage.
		return res
	}
	if cfg.RerankProvider != "" && s.provider != "" && cfg.RerankProvider != s.provider {
		s.logger.Warn("rerank provider mismatch, skipping reranking",
			slog.String("requested", cfg.RerankProvider),
			slog.String("configured", s.provider))
		return res
	}
	if !s.reranker.Available(ctx) {
		s.logger.Warn("reranker unavailable, skipping reranking")
		return res
	}

	n := min(cfg.RerankTopN, res.Len())
	ranked, err := s.reranker.Rerank(ctx, query, res.Documents[:n], 0)
	if err != nil {
		s.logger.Warn("reranking failed, using original order",
			slog.String("error", err.Error()))
		return res
	}

	keep := make([]int, 0, res.Len())
	scores := make([]float64, 0, res.Len())
	for _, r := range ranked {
		if cfg.RerankThreshold > 0 && r.Score < cfg.RerankThreshold {
			continue
		}
		keep = append(keep, r.Index)
		scores = append(scores, r.Score)
	}
	for i := n; i < res.Len(); i++ {
		keep = append(keep, i)
		scores = append(scores, 0)
	}

	out := selectIndices(res, keep)
	out.RerankScores = scores
	return out
}

// ensureKeywordIndex returns the ready index for the tenant and collection,
// building it from the document store's contents on first use. The index is
// not persisted; a restart rebuilds it here.
func (s *Service) ensureKeywordIndex(ctx context.Context, collection, tenantID string, cfg Config) (*keyword.ManagedIndex, error) {
	key := keyword.Key(tenantID, collection)
	return s.keywords.Ensure(ctx, key, s.buildFromStore(collection, tenantID, nil),
		keyword.WithParameters(cfg.K1, cfg.B))
}

// buildFromStore streams documents out of the vector backend into a keyword
// index under construction. A nil documentIDs means every document in the
// collection.
func (s *Service) buildFromStore(collection, tenantID string, documentIDs []string) keyword.BuildFunc {
	return func(ctx context.Context, add func(docID, text string)) error {
		ids := documentIDs
		if ids == nil {
			var err error
			ids, err = s.backend.ListDocumentIDs(ctx, collection, tenantID)
			if err != nil {
				return fmt.Errorf("list documents for keyword index: %w", err)
			}
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := s.backend.GetDocument(ctx, collection, tenantID, id)
			if err != nil {
				return fmt.Errorf("fetch document %s for keyword index: %w", id, err)
			}
			if doc == nil {
				continue
			}
			add(doc.ID, doc.Content)
		}
		return nil
	}
}

// BuildKeywordIndex (re)populates the BM25 index for a collection from the
// vector backend's contents. documentIDs restricts the build to that set;
// nil indexes the whole collection.
func (s *Service) BuildKeywordIndex(ctx context.Context, collection, tenantID string, documentIDs []string) error {
	key := keyword.Key(tenantID, collection)
	s.keywords.Invalidate(key)
	_, err := s.keywords.Ensure(ctx, key, s.buildFromStore(collection, tenantID, documentIDs))
	return err
}

// KeywordIndexState reports the lifecycle state of a collection's index.
func (s *Service) KeywordIndexState(collection, tenantID string) keyword.State {
	return s.keywords.StateOf(keyword.Key(tenantID, collection))
}

// IndexDocuments embeds and stores documents, keeping any already-built
// keyword indexes incrementally up to date.
func (s *Service) IndexDocuments(ctx context.Context, collection string, docs []*store.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	if err := s.backend.AddDocuments(ctx, collection, docs, embeddings); err != nil {
		return err
	}

	for _, doc := range docs {
		for _, key := range []string{keyword.Key(doc.TenantID, collection), keyword.Key("", collection)} {
			if idx := s.keywords.Get(key); idx != nil {
				// Re-adding accumulates term counts, so replace means
				// delete first.
				idx.Delete(doc.ID)
				idx.Add(doc.ID, doc.Content)
			}
		}
	}
	return nil
}

// DeleteDocuments removes documents from the store and any built indexes.
func (s *Service) DeleteDocuments(ctx context.Context, collection, tenantID string, ids []string) error {
	if err := s.backend.DeleteDocuments(ctx, collection, ids); err != nil {
		return err
	}

	for _, key := range []string{keyword.Key(tenantID, collection), keyword.Key("", collection)} {
		if idx := s.keywords.Get(key); idx != nil {
			for _, id := range ids {
				idx.Delete(id)
			}
		}
	}
	return nil
}

// Close releases the reranker.
func (s *Service) Close() error {
	return s.reranker.Close()
}
