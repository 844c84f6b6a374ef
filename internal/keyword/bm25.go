// Package keyword provides an in-memory BM25 inverted index for keyword
// search, maintained per (tenant, collection). The index is not persisted;
// it is rebuilt from the vector backend's contents after a restart.
package keyword

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Default BM25 parameters. k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// TokenizerFunc splits text into index terms.
type TokenizerFunc func(text string) []string

var wordRegex = regexp.MustCompile(`[a-z0-9]+`)

// DefaultTokenizer lowercases and splits on word boundaries.
func DefaultTokenizer(text string) []string {
	return wordRegex.FindAllString(strings.ToLower(text), -1)
}

// Hit is a single BM25 search result.
type Hit struct {
	DocID string
	Score float64
}

// Stats provides statistics about an index.
type Stats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// Index is an in-memory BM25 inverted index.
//
// Index is not safe for concurrent use; Manager guards each index with a
// reader-writer lock so searches never observe a half-written structure.
type Index struct {
	k1       float64
	b        float64
	tokenize TokenizerFunc

	docLengths map[string]int            // doc -> token count
	termFreqs  map[string]map[string]int // term -> doc -> tf
	docFreqs   map[string]int            // term -> number of docs containing it
	docOrder   []string                  // insertion order, for deterministic ties
	docPos     map[string]int            // doc -> insertion position
	totalLen   int
}

// Option configures an Index.
type Option func(*Index)

// WithParameters overrides the k1/b scoring parameters.
func WithParameters(k1, b float64) Option {
	return func(idx *Index) {
		if k1 > 0 {
			idx.k1 = k1
		}
		if b >= 0 {
			idx.b = b
		}
	}
}

// WithTokenizer overrides the default word-boundary tokenizer.
func WithTokenizer(fn TokenizerFunc) Option {
	return func(idx *Index) {
		if fn != nil {
			idx.tokenize = fn
		}
	}
}

// NewIndex creates an empty BM25 index.
func NewIndex(opts ...Option) *Index {
	idx := &Index{
		k1:         DefaultK1,
		b:          DefaultB,
		tokenize:   DefaultTokenizer,
		docLengths: make(map[string]int),
		termFreqs:  make(map[string]map[string]int),
		docFreqs:   make(map[string]int),
		docPos:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddDocument indexes a document's text under docID. Re-adding an existing
// docID merges term counts into the document's existing row; callers must
// delete-then-add to replace a document's content.
func (idx *Index) AddDocument(docID, text string) {
	tokens := idx.tokenize(text)

	if _, exists := idx.docLengths[docID]; !exists {
		idx.docPos[docID] = len(idx.docOrder)
		idx.docOrder = append(idx.docOrder, docID)
	}

	idx.docLengths[docID] += len(tokens)
	idx.totalLen += len(tokens)

	for _, term := range tokens {
		docs := idx.termFreqs[term]
		if docs == nil {
			docs = make(map[string]int)
			idx.termFreqs[term] = docs
		}
		if _, had := docs[docID]; !had {
			idx.docFreqs[term]++
		}
		docs[docID]++
	}
}

// AddDocuments indexes a batch of (docID, text) pairs in order.
func (idx *Index) AddDocuments(docs map[string]string, order []string) {
	for _, id := range order {
		if text, ok := docs[id]; ok {
			idx.AddDocument(id, text)
		}
	}
}

// DeleteDocument removes a document and its term statistics from the index.
func (idx *Index) DeleteDocument(docID string) {
	length, exists := idx.docLengths[docID]
	if !exists {
		return
	}

	for term, docs := range idx.termFreqs {
		if _, had := docs[docID]; had {
			delete(docs, docID)
			idx.docFreqs[term]--
			if idx.docFreqs[term] <= 0 {
				delete(idx.docFreqs, term)
				delete(idx.termFreqs, term)
			}
		}
	}

	idx.totalLen -= length
	delete(idx.docLengths, docID)

	pos := idx.docPos[docID]
	delete(idx.docPos, docID)
	idx.docOrder = append(idx.docOrder[:pos], idx.docOrder[pos+1:]...)
	for i := pos; i < len(idx.docOrder); i++ {
		idx.docPos[idx.docOrder[i]] = i
	}
}

// Search scores all documents containing at least one query term and
// returns the top-k hits sorted by score descending, ties broken by
// insertion order. An empty index or a query with no indexed terms
// returns an empty slice, not an error.
func (idx *Index) Search(query string, topK int) []Hit {
	n := len(idx.docLengths)
	if n == 0 || topK <= 0 {
		return []Hit{}
	}

	terms := idx.tokenize(query)
	if len(terms) == 0 {
		return []Hit{}
	}

	avgLen := float64(idx.totalLen) / float64(n)
	scores := make(map[string]float64)

	for _, term := range terms {
		docs, ok := idx.termFreqs[term]
		if !ok {
			continue
		}

		df := float64(idx.docFreqs[term])
		idf := math.Log((float64(n)-df+0.5)/(df+0.5) + 1)

		for docID, tf := range docs {
			docLen := float64(idx.docLengths[docID])
			tfF := float64(tf)
			denom := tfF + idx.k1*(1-idx.b+idx.b*docLen/avgLen)
			scores[docID] += idf * tfF * (idx.k1 + 1) / denom
		}
	}

	if len(scores) == 0 {
		return []Hit{}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{DocID: docID, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return idx.docPos[hits[i].DocID] < idx.docPos[hits[j].DocID]
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Contains reports whether docID is indexed.
func (idx *Index) Contains(docID string) bool {
	_, ok := idx.docLengths[docID]
	return ok
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docLengths)
}

// Stats returns index statistics.
func (idx *Index) Stats() Stats {
	s := Stats{
		DocumentCount: len(idx.docLengths),
		TermCount:     len(idx.termFreqs),
	}
	if s.DocumentCount > 0 {
		s.AvgDocLength = float64(idx.totalLen) / float64(s.DocumentCount)
	}
	return s
}
