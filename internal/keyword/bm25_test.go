package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_SingleDocumentTerm(t *testing.T) {
	// A term present in exactly one document returns that document alone.
	idx := NewIndex()
	idx.AddDocument("a", "the quick brown fox")
	idx.AddDocument("b", "lazy dogs sleep all day")
	idx.AddDocument("c", "quick thinking saves time")

	hits := idx.Search("lazy", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].DocID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestIndex_TermFrequencyRanking(t *testing.T) {
	// Scenario: ["cat dog", "cat cat cat", "fish"]; query "cat" ranks the
	// all-cat document first and fish never appears.
	idx := NewIndex(WithParameters(1.5, 0.75))
	idx.AddDocument("d1", "cat dog")
	idx.AddDocument("d2", "cat cat cat")
	idx.AddDocument("d3", "fish")

	hits := idx.Search("cat", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "d2", hits[0].DocID)
	assert.Equal(t, "d1", hits[1].DocID)
	for _, h := range hits {
		assert.NotEqual(t, "d3", h.DocID)
	}
}

func TestIndex_Monotonicity(t *testing.T) {
	// For fixed document length, a higher query-term frequency never lowers
	// the document's score.
	base := NewIndex()
	base.AddDocument("doc", "cat dog dog dog")
	base.AddDocument("other", "bird bird bird bird")

	more := NewIndex()
	more.AddDocument("doc", "cat cat dog dog")
	more.AddDocument("other", "bird bird bird bird")

	baseScore := base.Search("cat", 1)[0].Score
	moreScore := more.Search("cat", 1)[0].Score
	assert.GreaterOrEqual(t, moreScore, baseScore)
}

func TestIndex_EmptyCases(t *testing.T) {
	idx := NewIndex()

	assert.Empty(t, idx.Search("anything", 10), "empty index returns no hits")

	idx.AddDocument("a", "indexed content here")
	assert.Empty(t, idx.Search("missing", 10), "query with no indexed terms")
	assert.Empty(t, idx.Search("", 10), "empty query")
	assert.Empty(t, idx.Search("content", 0), "topK of zero")
}

func TestIndex_ReAddAccumulates(t *testing.T) {
	// Re-adding a doc ID merges counts rather than replacing the row.
	idx := NewIndex()
	idx.AddDocument("a", "cat")
	idx.AddDocument("b", "dog")

	before := idx.Search("cat", 1)[0].Score
	idx.AddDocument("a", "cat cat")
	after := idx.Search("cat", 1)[0].Score

	assert.Greater(t, after, before)
	assert.Equal(t, 2, idx.Len(), "re-add must not create a new document")
}

func TestIndex_DeleteDocument(t *testing.T) {
	idx := NewIndex()
	idx.AddDocument("a", "cat dog")
	idx.AddDocument("b", "cat fish")

	idx.DeleteDocument("a")

	hits := idx.Search("cat", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].DocID)
	assert.False(t, idx.Contains("a"))

	// Deleting an unknown doc is a no-op.
	idx.DeleteDocument("nope")
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_TiesBreakByInsertionOrder(t *testing.T) {
	idx := NewIndex()
	idx.AddDocument("first", "apple banana")
	idx.AddDocument("second", "apple banana")

	hits := idx.Search("apple", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].DocID)
	assert.Equal(t, "second", hits[1].DocID)
}

func TestIndex_TopKTruncation(t *testing.T) {
	idx := NewIndex()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		idx.AddDocument(id, "shared term content")
	}

	hits := idx.Search("shared", 3)
	assert.Len(t, hits, 3)
}

func TestIndex_Stats(t *testing.T) {
	idx := NewIndex()
	idx.AddDocument("a", "one two three")
	idx.AddDocument("b", "four five")

	s := idx.Stats()
	assert.Equal(t, 2, s.DocumentCount)
	assert.Equal(t, 5, s.TermCount)
	assert.InDelta(t, 2.5, s.AvgDocLength, 1e-9)
}

func TestDefaultTokenizer(t *testing.T) {
	tokens := DefaultTokenizer("Hello, World! x2 -- done_now")
	assert.Equal(t, []string{"hello", "world", "x2", "done", "now"}, tokens)
}
