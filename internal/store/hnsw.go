package store

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// vectorIndex wraps a coder/hnsw graph for one collection, mapping string
// document IDs to internal uint64 keys.
type vectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// vectorHit is a raw nearest-neighbor hit before document hydration.
type vectorHit struct {
	ID       string
	Distance float64
	Score    float64
}

func newVectorIndex(cfg VectorIndexConfig) *vectorIndex {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &vectorIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts vectors. Existing IDs are lazily replaced: the old graph node
// is orphaned rather than deleted, which sidesteps graph-repair issues when
// removing nodes.
func (v *vectorIndex) add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i, id := range ids {
		if len(vectors[i]) != v.config.Dimensions {
			return fmt.Errorf("dimension mismatch: expected %d, got %d", v.config.Dimensions, len(vectors[i]))
		}

		if existingKey, exists := v.idMap[id]; exists {
			delete(v.keyMap, existingKey)
			delete(v.idMap, id)
		}

		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if v.config.Metric == "cos" {
			normalizeInPlace(vec)
		}

		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idMap[id] = key
		v.keyMap[key] = id
	}

	return nil
}

// search returns the k nearest neighbors. Orphaned nodes from lazy
// replacement are skipped.
func (v *vectorIndex) search(query []float32, k int) ([]vectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(query) != v.config.Dimensions {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d", v.config.Dimensions, len(query))
	}

	if v.graph.Len() == 0 {
		return []vectorHit{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if v.config.Metric == "cos" {
		normalizeInPlace(q)
	}

	nodes := v.graph.Search(q, k)

	hits := make([]vectorHit, 0, len(nodes))
	for _, node := range nodes {
		id, exists := v.keyMap[node.Key]
		if !exists {
			continue
		}

		distance := float64(v.graph.Distance(q, node.Value))
		hits = append(hits, vectorHit{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance, v.config.Metric),
		})
	}

	return hits, nil
}

// remove drops IDs from the index mappings (lazy deletion).
func (v *vectorIndex) remove(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range ids {
		if key, exists := v.idMap[id]; exists {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
}

func (v *vectorIndex) count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// normalizeInPlace normalizes a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore converts a distance to a 0-1 similarity score.
func distanceToScore(distance float64, metric string) float64 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		// Cosine distance ranges 0 (identical) to 2 (opposite).
		return 1.0 - distance/2.0
	}
}
