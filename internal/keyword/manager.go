package keyword

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle state of a managed index. Callers await readiness
// instead of triggering construction through a failed lookup.
type State int

const (
	// StateEmpty means no index has been built for the key yet.
	StateEmpty State = iota
	// StateBuilding means a build is in progress; searches wait for it.
	StateBuilding
	// StateReady means the index is built and searchable.
	StateReady
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return "empty"
	}
}

// Key derives the index key for a tenant and collection.
// A present tenant scopes the index to tenant_collection; otherwise the
// collection alone is the key.
func Key(tenantID, collection string) string {
	if tenantID != "" {
		return fmt.Sprintf("%s_%s", tenantID, collection)
	}
	return collection
}

// BuildFunc populates an index under construction. The add callback indexes
// one document; implementations stream documents from the vector backend.
type BuildFunc func(ctx context.Context, add func(docID, text string)) error

// ManagedIndex wraps an Index with a reader-writer lock so concurrent
// searches are safe against concurrent writes.
type ManagedIndex struct {
	mu  sync.RWMutex
	idx *Index
}

// Search runs a BM25 search under a read lock.
func (m *ManagedIndex) Search(query string, topK int) []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.Search(query, topK)
}

// Add indexes a document under the write lock.
func (m *ManagedIndex) Add(docID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx.AddDocument(docID, text)
}

// Delete removes a document under the write lock.
func (m *ManagedIndex) Delete(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx.DeleteDocument(docID)
}

// Len returns the number of indexed documents.
func (m *ManagedIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.Len()
}

// Stats returns index statistics.
func (m *ManagedIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.Stats()
}

type entry struct {
	index *ManagedIndex
	state State
	ready chan struct{} // closed when the build finishes
	err   error         // build error, set before ready closes
}

// Manager owns the per-(tenant, collection) keyword indexes as explicit
// instance state rather than ambient globals.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    []Option
}

// NewManager creates a Manager. opts are applied to every index it builds.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		opts:    opts,
	}
}

// StateOf returns the lifecycle state for key.
func (m *Manager) StateOf(key string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return StateEmpty
	}
	return e.state
}

// Get returns the ready index for key, or nil if it is not ready.
func (m *Manager) Get(key string) *ManagedIndex {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.state != StateReady {
		return nil
	}
	return e.index
}

// Ensure returns the index for key, building it with build if it does not
// exist. If another goroutine is already building the same key, Ensure waits
// for that build to finish instead of starting a second one. opts apply on
// top of the manager defaults for this build only.
func (m *Manager) Ensure(ctx context.Context, key string, build BuildFunc, opts ...Option) (*ManagedIndex, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok {
		switch e.state {
		case StateReady:
			m.mu.Unlock()
			return e.index, nil
		case StateBuilding:
			ready := e.ready
			m.mu.Unlock()
			select {
			case <-ready:
				if e.err != nil {
					return nil, e.err
				}
				return e.index, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	// Transition Empty -> Building under the manager lock, then build
	// outside it so other keys stay available.
	e = &entry{
		index: &ManagedIndex{idx: NewIndex(append(append([]Option{}, m.opts...), opts...)...)},
		state: StateBuilding,
		ready: make(chan struct{}),
	}
	m.entries[key] = e
	m.mu.Unlock()

	start := time.Now()
	err := build(ctx, func(docID, text string) {
		e.index.Add(docID, text)
	})

	m.mu.Lock()
	if err != nil {
		e.err = err
		delete(m.entries, key) // allow a later rebuild attempt
	} else {
		e.state = StateReady
	}
	close(e.ready)
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	slog.Info("keyword_index_built",
		slog.String("key", key),
		slog.Int("documents", e.index.Len()),
		slog.Duration("duration", time.Since(start)))

	return e.index, nil
}

// Invalidate drops the index for key so the next Ensure rebuilds it.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Keys returns the keys of all indexes currently ready or building.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}
