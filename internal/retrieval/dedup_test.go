package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultWithDocs(docs ...string) *Result {
	r := &Result{
		IDs:       make([]string, len(docs)),
		Documents: docs,
		Scores:    make([]float64, len(docs)),
		Metadata:  make([]map[string]string, len(docs)),
	}
	for i := range docs {
		r.IDs[i] = string(rune('a' + i))
		r.Scores[i] = 1.0 - float64(i)*0.1
	}
	return r
}

func TestDeduplicate_FirstSeenSurvives(t *testing.T) {
	r := resultWithDocs(
		"the quarterly revenue grew by ten percent",
		"the quarterly revenue grew by ten percent",
		"completely different content about cats",
	)

	out := deduplicate(r, 0.95)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "a", out.IDs[0])
	assert.Equal(t, "c", out.IDs[1])
	require.NoError(t, out.Validate())
}

func TestDeduplicate_CaseAndWhitespaceInsensitive(t *testing.T) {
	r := resultWithDocs(
		"The Quarterly Revenue Grew",
		"  the quarterly revenue grew  ",
	)

	out := deduplicate(r, 0.95)
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, "a", out.IDs[0])
}

func TestDeduplicate_BelowThresholdKept(t *testing.T) {
	r := resultWithDocs(
		"alpha beta gamma delta",
		"alpha beta epsilon zeta",
	)

	// Jaccard = 2/6, well below threshold.
	out := deduplicate(r, 0.95)
	assert.Equal(t, 2, out.Len())
}

func TestDeduplicate_ThresholdBoundaryDrops(t *testing.T) {
	r := resultWithDocs(
		"alpha beta",
		"alpha beta", // similarity exactly 1.0 >= threshold 1.0
	)

	out := deduplicate(r, 1.0)
	assert.Equal(t, 1, out.Len())
}

func TestDeduplicate_SmallInputsUntouched(t *testing.T) {
	empty := &Result{}
	assert.Same(t, empty, deduplicate(empty, 0.95))

	one := resultWithDocs("only one")
	assert.Same(t, one, deduplicate(one, 0.95))
}

func TestJaccard(t *testing.T) {
	a := wordSet("alpha beta gamma")
	b := wordSet("beta gamma delta")

	assert.InDelta(t, 0.5, jaccard(a, b), 1e-9) // 2 shared / 4 union
	assert.Equal(t, 1.0, jaccard(a, a))
	assert.Equal(t, 1.0, jaccard(wordSet(""), wordSet("")))
	assert.Equal(t, 0.0, jaccard(a, wordSet("")))
}
