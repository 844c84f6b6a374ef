package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/t-simwa/documind-document-analyzer-sub000/internal/output"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/store"
)

// indexableExtensions are the file types ingested when walking a directory.
var indexableExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".rst":      true,
}

// indexBatchSize bounds documents per embed-and-store round trip.
const indexBatchSize = 32

type indexOptions struct {
	collection string
	tenant     string
	ndjson     bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: "Index documents into a collection",
		Long: `Index documents into a collection for retrieval.

Each argument is a file or directory. Directories are walked for text
documents (.txt, .md, .markdown, .rst). With --ndjson, each argument is
a newline-delimited JSON file of {"id", "content", "metadata"} records;
records without an id get a generated one.

Examples:
  documind index ./docs
  documind index --collection contracts --tenant acme ./contracts
  documind index --ndjson export.ndjson`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "default", "Target collection")
	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant the documents belong to")
	cmd.Flags().BoolVar(&opts.ndjson, "ndjson", false, "Treat arguments as NDJSON document files")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, args []string, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	var docs []*store.Document
	for _, arg := range args {
		var collected []*store.Document
		if opts.ndjson {
			collected, err = readNDJSON(arg, opts.tenant)
		} else {
			collected, err = collectFiles(arg, opts.tenant)
		}
		if err != nil {
			return err
		}
		docs = append(docs, collected...)
	}
	if len(docs) == 0 {
		out.Status("", "No documents found to index")
		return nil
	}

	indexed := 0
	for start := 0; start < len(docs); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := eng.service.IndexDocuments(ctx, opts.collection, docs[start:end]); err != nil {
			out.Newline()
			return fmt.Errorf("indexing failed after %d documents: %w", indexed, err)
		}
		indexed = end
		out.Progress(indexed, len(docs), "embedding documents")
	}

	if err := eng.service.BuildKeywordIndex(ctx, opts.collection, opts.tenant, nil); err != nil {
		return fmt.Errorf("keyword index build failed: %w", err)
	}

	out.Statusf("", "Indexed %d documents into %q", indexed, opts.collection)
	return nil
}

// collectFiles gathers documents from a file or directory tree. The document
// ID is the cleaned path so re-indexing the same tree upserts instead of
// duplicating.
func collectFiles(root, tenant string) ([]*store.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", root, err)
	}

	var docs []*store.Document
	addFile := func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil
		}
		docs = append(docs, &store.Document{
			ID:       filepath.Clean(path),
			TenantID: tenant,
			Content:  content,
			Metadata: map[string]string{
				"path": filepath.Clean(path),
				"ext":  strings.TrimPrefix(filepath.Ext(path), "."),
			},
			CreatedAt: time.Now(),
		})
		return nil
	}

	if !info.IsDir() {
		if err := addFile(root); err != nil {
			return nil, err
		}
		return docs, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		return addFile(path)
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// readNDJSON parses one document per line. Lines must be JSON objects with
// at least a content field.
func readNDJSON(path, tenant string) ([]*store.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	type record struct {
		ID       string            `json:"id"`
		Content  string            `json:"content"`
		Metadata map[string]string `json:"metadata"`
	}

	var docs []*store.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid JSON: %w", path, line, err)
		}
		if strings.TrimSpace(rec.Content) == "" {
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		docs = append(docs, &store.Document{
			ID:        rec.ID,
			TenantID:  tenant,
			Content:   rec.Content,
			Metadata:  rec.Metadata,
			CreatedAt: time.Now(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return docs, nil
}
