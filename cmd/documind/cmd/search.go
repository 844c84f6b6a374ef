package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/t-simwa/documind-document-analyzer-sub000/internal/output"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/rerank"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/retrieval"
)

type searchOptions struct {
	collection      string
	tenant          string
	topK            int
	searchType      string
	fusion          string
	rerank          bool
	rerankThreshold float64
	noDedup         bool
	expand          bool
	filters         []string
	format          string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a collection",
		Long: `Search a collection with hybrid retrieval.

Vector and BM25 keyword results are fused with Reciprocal Rank Fusion
by default. Near-duplicate passages are dropped unless --no-dedup is set.

Examples:
  documind search "termination clause"
  documind search "Q3 revenue" --collection reports --top-k 5
  documind search "invoice total" --type keyword --expand
  documind search "liability cap" --filter source=contracts --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "default", "Collection to search")
	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant scope")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (0 = configured default)")
	cmd.Flags().StringVar(&opts.searchType, "type", "", "Search type: vector, keyword, hybrid")
	cmd.Flags().StringVar(&opts.fusion, "fusion", "", "Fusion method: rrf, weighted, mean")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Rerank results with the configured provider")
	cmd.Flags().Float64Var(&opts.rerankThreshold, "rerank-threshold", 0, "Drop reranked results scoring below this (0 = keep all)")
	cmd.Flags().BoolVar(&opts.noDedup, "no-dedup", false, "Keep near-duplicate passages")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "Expand the query with domain synonyms")
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Metadata filter key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	cfg := eng.cfg.RetrievalDefaults()
	if opts.topK > 0 {
		cfg.TopK = opts.topK
	}
	if opts.searchType != "" {
		cfg.SearchType = retrieval.SearchType(opts.searchType)
	}
	if opts.fusion != "" {
		cfg.FusionMethod = retrieval.FusionMethod(opts.fusion)
	}
	if opts.rerank {
		cfg.RerankEnabled = true
		if eng.rerankProvider == "" || eng.rerankProvider == rerank.ProviderNone {
			out.Warningf("no reranker configured, results will not be reranked")
		}
	}
	if opts.rerankThreshold > 0 {
		cfg.RerankThreshold = opts.rerankThreshold
	}
	if opts.noDedup {
		cfg.DeduplicationEnabled = false
	}
	if opts.expand {
		cfg.QueryExpansionEnabled = true
	}
	if len(opts.filters) > 0 {
		cfg.MetadataFilter = make(map[string]string, len(opts.filters))
		for _, f := range opts.filters {
			key, value, ok := strings.Cut(f, "=")
			if !ok {
				return fmt.Errorf("invalid --filter %q: want key=value", f)
			}
			cfg.MetadataFilter[key] = value
		}
	}

	res, err := eng.service.Retrieve(ctx, query, opts.collection, cfg, opts.tenant)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch opts.format {
	case "json":
		return formatJSON(cmd, res)
	default:
		formatText(out, query, res)
		return nil
	}
}

// formatText writes human-readable results.
func formatText(out *output.Writer, query string, res *retrieval.Result) {
	if res.Len() == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return
	}

	out.Statusf("🔍", "Found %d results for %q:", res.Len(), query)
	out.Newline()

	reranked := len(res.RerankScores) == res.Len()
	for i := 0; i < res.Len(); i++ {
		label := res.IDs[i]
		if path, ok := res.Metadata[i]["path"]; ok && path != "" {
			label = path
		}
		if reranked && res.RerankScores[i] > 0 {
			out.Statusf("", "%d. %s (score: %.3f, rerank: %.3f)", i+1, label, res.Scores[i], res.RerankScores[i])
		} else {
			out.Statusf("", "%d. %s (score: %.3f)", i+1, label, res.Scores[i])
		}
		for _, line := range snippet(res.Documents[i], 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
}

// formatJSON writes results as a JSON array.
func formatJSON(cmd *cobra.Command, res *retrieval.Result) error {
	type jsonResult struct {
		ID          string            `json:"id"`
		Score       float64           `json:"score"`
		RerankScore float64           `json:"rerank_score,omitempty"`
		Content     string            `json:"content"`
		Metadata    map[string]string `json:"metadata,omitempty"`
	}

	results := make([]jsonResult, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		r := jsonResult{
			ID:      res.IDs[i],
			Score:   res.Scores[i],
			Content: res.Documents[i],
		}
		if i < len(res.Metadata) {
			r.Metadata = res.Metadata[i]
		}
		if len(res.RerankScores) == res.Len() {
			r.RerankScore = res.RerankScores[i]
		}
		results = append(results, r)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// snippet returns the first n non-trailing-blank lines of content.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
