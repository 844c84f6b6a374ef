package cmd

import (
	"github.com/spf13/cobra"

	"github.com/t-simwa/documind-document-analyzer-sub000/internal/output"
)

func newStatusCmd() *cobra.Command {
	var collection string
	var tenant string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store and index status for a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			eng, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			docs, err := eng.store.Count(ctx, collection)
			if err != nil {
				return err
			}

			out.Statusf("", "Collection:     %s", collection)
			out.Statusf("", "Documents:      %d", docs)
			out.Statusf("", "Vectors:        %d", eng.store.VectorCount(collection))
			out.Statusf("", "Keyword index:  %s", eng.service.KeywordIndexState(collection, tenant))
			out.Statusf("", "Store path:     %s", eng.cfg.Store.Path)
			out.Statusf("", "Embedder:       %s (%s)", eng.cfg.Embeddings.Provider, eng.embedder.ModelName())
			out.Statusf("", "Reranker:       %s", eng.cfg.Rerank.Provider)
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "default", "Collection to inspect")
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant scope")
	return cmd
}
