package store

import (
	"context"
	"fmt"
	"sync"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// overFetchFactor widens nearest-neighbor searches so post-search metadata
// filtering still yields topK survivors.
const overFetchFactor = 4

// Local is a vector backend backed by SQLite documents and per-collection
// HNSW indexes. Indexes are owned as explicit instance state and guarded by
// a lock, not ambient globals.
type Local struct {
	mu      sync.RWMutex
	docs    *documentDB
	indexes map[string]*vectorIndex
	config  VectorIndexConfig
	closed  bool
}

// NewLocal creates a Local store. path is the SQLite database file; empty
// means in-memory. cfg fixes the embedding dimension for every collection.
func NewLocal(path string, cfg VectorIndexConfig) (*Local, error) {
	if cfg.Dimensions <= 0 {
		return nil, derrors.ConfigError(
			fmt.Sprintf("invalid vector dimensions: %d", cfg.Dimensions), nil)
	}

	docs, err := openDocumentDB(path)
	if err != nil {
		return nil, err
	}

	return &Local{
		docs:    docs,
		indexes: make(map[string]*vectorIndex),
		config:  cfg,
	}, nil
}

// indexFor returns the collection's HNSW index, building it from persisted
// embeddings on first access so vectors survive restarts.
func (l *Local) indexFor(ctx context.Context, collection string) (*vectorIndex, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.indexes[collection]
	if ok {
		return idx, nil
	}

	idx = newVectorIndex(l.config)
	ids, vectors, err := l.docs.listEmbeddings(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if err := idx.add(ids, vectors); err != nil {
			return nil, err
		}
	}
	l.indexes[collection] = idx
	return idx, nil
}

// AddDocuments persists documents and indexes their embeddings.
// docs and embeddings are parallel; a length mismatch is a programming error.
func (l *Local) AddDocuments(ctx context.Context, collection string, docs []*Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return derrors.New(derrors.ErrCodeArrayMismatch,
			fmt.Sprintf("documents and embeddings length mismatch: %d vs %d", len(docs), len(embeddings)), nil)
	}
	if len(docs) == 0 {
		return nil
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	l.mu.RUnlock()

	for _, doc := range docs {
		doc.Collection = collection
	}

	idx, err := l.indexFor(ctx, collection)
	if err != nil {
		return derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to load vector index", err)
	}

	if err := l.docs.saveDocuments(ctx, docs, embeddings); err != nil {
		return derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to save documents", err)
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	if err := idx.add(ids, embeddings); err != nil {
		return derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to index vectors", err)
	}

	return nil
}

// Search runs nearest-neighbor search over a collection, hydrates the hits
// and applies tenant plus metadata filtering.
func (l *Local) Search(ctx context.Context, collection string, embedding []float32, topK int, tenantID string, filter Filter) (*SearchResult, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	l.mu.RUnlock()

	if topK <= 0 {
		return &SearchResult{}, nil
	}

	fetchK := topK
	if !filter.IsZero() || tenantID != "" {
		fetchK = topK * overFetchFactor
	}

	idx, err := l.indexFor(ctx, collection)
	if err != nil {
		return nil, derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to load vector index", err)
	}

	hits, err := idx.search(embedding, fetchK)
	if err != nil {
		return nil, derrors.ProviderError(derrors.ErrCodeVectorBackend, "vector search failed", err)
	}
	if len(hits) == 0 {
		return &SearchResult{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}

	docsByID, err := l.docs.getDocuments(ctx, collection, tenantID, ids)
	if err != nil {
		return nil, derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to hydrate documents", err)
	}

	result := &SearchResult{}
	for _, h := range hits {
		doc, ok := docsByID[h.ID]
		if !ok {
			continue // vector orphan or tenant mismatch
		}
		if !filter.Matches(doc.Metadata) {
			continue
		}

		result.IDs = append(result.IDs, doc.ID)
		result.Documents = append(result.Documents, doc.Content)
		result.Metadata = append(result.Metadata, doc.Metadata)
		result.Distances = append(result.Distances, h.Distance)
		result.Scores = append(result.Scores, h.Score)

		if result.Len() >= topK {
			break
		}
	}

	return result, nil
}

// GetDocument fetches one document, or nil if absent. Used to hydrate
// keyword-search hits, which carry no payload of their own.
func (l *Local) GetDocument(ctx context.Context, collection, tenantID, id string) (*Document, error) {
	doc, err := l.docs.getDocument(ctx, collection, tenantID, id)
	if err != nil {
		return nil, derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to get document", err)
	}
	return doc, nil
}

// ListDocumentIDs returns all document IDs in a collection, in insertion
// order. Used to rebuild keyword indexes after a restart.
func (l *Local) ListDocumentIDs(ctx context.Context, collection, tenantID string) ([]string, error) {
	ids, err := l.docs.listIDs(ctx, collection, tenantID)
	if err != nil {
		return nil, derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to list documents", err)
	}
	return ids, nil
}

// DeleteDocuments removes documents and their vectors.
func (l *Local) DeleteDocuments(ctx context.Context, collection string, ids []string) error {
	idx, err := l.indexFor(ctx, collection)
	if err != nil {
		return derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to load vector index", err)
	}
	if err := l.docs.deleteDocuments(ctx, collection, ids); err != nil {
		return derrors.ProviderError(derrors.ErrCodeVectorBackend, "failed to delete documents", err)
	}
	idx.remove(ids)
	return nil
}

// Count returns the number of documents in a collection.
func (l *Local) Count(ctx context.Context, collection string) (int, error) {
	return l.docs.count(ctx, collection)
}

// VectorCount returns the number of indexed vectors in a collection.
func (l *Local) VectorCount(collection string) int {
	idx, err := l.indexFor(context.Background(), collection)
	if err != nil {
		return 0
	}
	return idx.count()
}

// Close releases all resources. Idempotent.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.docs.close()
}
