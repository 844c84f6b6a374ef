package retrieval

import (
	"strings"
	"unicode"
)

// maxSynonymsPerTerm bounds expansion so a short query cannot balloon into
// a noise query.
const maxSynonymsPerTerm = 2

// QueryOptimizer normalizes, optionally expands, and extracts keywords from
// raw query strings. All methods are pure functions over the input.
type QueryOptimizer struct {
	synonyms  map[string][]string
	stopwords map[string]struct{}
}

// OptimizerOption configures the query optimizer.
type OptimizerOption func(*QueryOptimizer)

// WithSynonyms adds custom synonym mappings on top of the defaults.
func WithSynonyms(synonyms map[string][]string) OptimizerOption {
	return func(o *QueryOptimizer) {
		for k, v := range synonyms {
			o.synonyms[strings.ToLower(k)] = append(o.synonyms[strings.ToLower(k)], v...)
		}
	}
}

// NewQueryOptimizer creates an optimizer with the default synonym table and
// stop-word set.
func NewQueryOptimizer(opts ...OptimizerOption) *QueryOptimizer {
	o := &QueryOptimizer{
		synonyms:  make(map[string][]string, len(DocumentSynonyms)),
		stopwords: make(map[string]struct{}, len(stopwordList)),
	}

	for k, v := range DocumentSynonyms {
		o.synonyms[k] = v
	}
	for _, w := range stopwordList {
		o.stopwords[w] = struct{}{}
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Preprocess lowercases, strips non-alphanumeric characters to spaces,
// collapses whitespace, and optionally removes stop words.
func (o *QueryOptimizer) Preprocess(query string, lowercase, removeStopwords bool) string {
	if lowercase {
		query = strings.ToLower(query)
	}

	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	if removeStopwords {
		kept := tokens[:0]
		for _, t := range tokens {
			if _, stop := o.stopwords[strings.ToLower(t)]; !stop {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}

	return strings.Join(tokens, " ")
}

// Expand appends up to two synonyms for each token found in the synonym
// table, then deduplicates tokens preserving first-seen order. Original
// tokens are never dropped.
func (o *QueryOptimizer) Expand(query string) string {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return query
	}

	seen := make(map[string]bool, len(tokens))
	var expanded []string

	for _, t := range tokens {
		key := strings.ToLower(t)
		if !seen[key] {
			expanded = append(expanded, t)
			seen[key] = true
		}
	}

	for _, t := range tokens {
		added := 0
		for _, syn := range o.synonyms[strings.ToLower(t)] {
			if added >= maxSynonymsPerTerm {
				break
			}
			key := strings.ToLower(syn)
			if !seen[key] {
				expanded = append(expanded, syn)
				seen[key] = true
				added++
			}
		}
	}

	return strings.Join(expanded, " ")
}

// ExtractKeywords preprocesses with stop-word removal, drops tokens of
// length <= 2, deduplicates preserving order, and caps at maxKeywords.
func (o *QueryOptimizer) ExtractKeywords(query string, maxKeywords int) []string {
	cleaned := o.Preprocess(query, true, true)

	seen := make(map[string]bool)
	var keywords []string
	for _, t := range strings.Fields(cleaned) {
		if len(t) <= 2 || seen[t] {
			continue
		}
		keywords = append(keywords, t)
		seen[t] = true
		if maxKeywords > 0 && len(keywords) >= maxKeywords {
			break
		}
	}
	return keywords
}
