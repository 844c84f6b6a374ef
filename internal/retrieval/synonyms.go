package retrieval

// DocumentSynonyms maps common query vocabulary to document vocabulary.
// BM25 matches exact keywords, so a user asking for a "contract" must also
// hit passages that say "agreement". Vector search needs no help here; the
// expansion is applied to the keyword branch only.
//
// Design principles:
//  1. Map user vocabulary to document vocabulary, not vice versa.
//  2. Keep lists short; the expander takes at most two synonyms per term.
//  3. Lowercase keys; lookup is case-insensitive.
var DocumentSynonyms = map[string][]string{
	// Document and file terms
	"document": {"file", "record", "paper"},
	"file":     {"document", "attachment"},
	"report":   {"summary", "analysis", "review"},
	"summary":  {"overview", "abstract", "digest"},
	"draft":    {"version", "revision"},

	// Business and legal terms
	"contract":  {"agreement", "terms"},
	"agreement": {"contract", "terms"},
	"invoice":   {"bill", "receipt", "statement"},
	"policy":    {"guideline", "procedure", "rule"},
	"budget":    {"forecast", "plan", "allocation"},
	"revenue":   {"income", "earnings", "sales"},
	"cost":      {"expense", "spending", "price"},
	"meeting":   {"discussion", "call", "session"},
	"deadline":  {"due", "date", "timeline"},
	"client":    {"customer", "account"},
	"customer":  {"client", "user"},
	"employee":  {"staff", "personnel", "worker"},
	"vendor":    {"supplier", "provider", "partner"},

	// Question and intent terms
	"issue":   {"problem", "bug", "defect"},
	"problem": {"issue", "error", "failure"},
	"change":  {"update", "modification", "amendment"},
	"update":  {"change", "revision"},
	"approve": {"authorize", "accept", "sign"},
	"cancel":  {"terminate", "void", "revoke"},
	"start":   {"begin", "launch", "initiate"},
	"end":     {"finish", "complete", "close"},

	// Quantities and measurement
	"number": {"count", "total", "amount"},
	"amount": {"total", "sum", "quantity"},
	"growth": {"increase", "rise", "gain"},
	"drop":   {"decrease", "decline", "fall"},
}

// stopwordList is a small English stop-word set. Deliberately short: over-
// aggressive removal hurts queries like "to be or not to be".
var stopwordList = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "from", "has", "have", "in", "is", "it", "its",
	"of", "on", "or", "that", "the", "this", "to", "was",
	"were", "which", "will", "with",
}
