package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess(t *testing.T) {
	o := NewQueryOptimizer()

	tests := []struct {
		name            string
		query           string
		lowercase       bool
		removeStopwords bool
		want            string
	}{
		{
			name:      "lowercase and strip punctuation",
			query:     "What's the Q3 Revenue?!",
			lowercase: true,
			want:      "what s the q3 revenue",
		},
		{
			name:            "stopword removal",
			query:           "what is the revenue for this quarter",
			lowercase:       true,
			removeStopwords: true,
			want:            "what revenue quarter",
		},
		{
			name:      "collapse whitespace",
			query:     "  spaced    out \t query ",
			lowercase: true,
			want:      "spaced out query",
		},
		{
			name:  "preserve case when disabled",
			query: "Keep CASE",
			want:  "Keep CASE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := o.Preprocess(tt.query, tt.lowercase, tt.removeStopwords)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_KeepsOriginalTokens(t *testing.T) {
	o := NewQueryOptimizer()

	expanded := o.Expand("contract deadline")
	tokens := strings.Fields(expanded)

	assert.Equal(t, "contract", tokens[0])
	assert.Equal(t, "deadline", tokens[1])
	assert.Greater(t, len(tokens), 2)
}

func TestExpand_AtMostTwoSynonymsPerTerm(t *testing.T) {
	o := NewQueryOptimizer()

	expanded := o.Expand("invoice")
	tokens := strings.Fields(expanded)

	// original plus at most two synonyms
	assert.LessOrEqual(t, len(tokens), 3)
	assert.Equal(t, "invoice", tokens[0])
}

func TestExpand_DeduplicatesPreservingOrder(t *testing.T) {
	o := NewQueryOptimizer()

	expanded := o.Expand("contract contract agreement")
	tokens := strings.Fields(expanded)

	seen := make(map[string]bool)
	for _, tok := range tokens {
		key := strings.ToLower(tok)
		assert.False(t, seen[key], "duplicate token %q", tok)
		seen[key] = true
	}
	assert.Equal(t, "contract", tokens[0])
	assert.Equal(t, "agreement", tokens[1])
}

func TestExpand_UnknownTermsPassThrough(t *testing.T) {
	o := NewQueryOptimizer()

	assert.Equal(t, "zyzzyva floccinaucinihilipilification",
		o.Expand("zyzzyva floccinaucinihilipilification"))
	assert.Equal(t, "", o.Expand(""))
}

func TestExpand_CustomSynonyms(t *testing.T) {
	o := NewQueryOptimizer(WithSynonyms(map[string][]string{
		"acme": {"anvil"},
	}))

	assert.Equal(t, "acme anvil", o.Expand("acme"))
}

func TestExtractKeywords(t *testing.T) {
	o := NewQueryOptimizer()

	keywords := o.ExtractKeywords("What is the total revenue of Q3 in the annual report?", 3)
	assert.Equal(t, []string{"what", "total", "revenue"}, keywords)
}

func TestExtractKeywords_DropsShortTokens(t *testing.T) {
	o := NewQueryOptimizer()

	keywords := o.ExtractKeywords("ab cd revenue xy growth", 0)
	assert.Equal(t, []string{"revenue", "growth"}, keywords)
}

func TestExtractKeywords_Deduplicates(t *testing.T) {
	o := NewQueryOptimizer()

	keywords := o.ExtractKeywords("revenue revenue revenue growth", 0)
	assert.Equal(t, []string{"revenue", "growth"}, keywords)
}
