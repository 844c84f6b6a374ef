package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/t-simwa/documind-document-analyzer-sub000/internal/config"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/embed"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/rerank"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/retrieval"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/store"
)

// engine bundles the wired retrieval stack for a CLI invocation.
type engine struct {
	cfg            *config.Config
	store          *store.Local
	embedder       embed.Embedder
	service        *retrieval.Service
	rerankProvider string
}

// close releases resources in reverse construction order.
func (e *engine) close() {
	if e.service != nil {
		_ = e.service.Close()
	}
	if e.embedder != nil {
		_ = e.embedder.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}

// newEngine loads configuration from the working directory and wires the
// store, embedder, reranker, and retrieval service together. A reranker
// that cannot be constructed degrades to no reranking with a warning; a
// missing embedder is fatal because nothing can be indexed or searched
// without one.
func newEngine(ctx context.Context) (*engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewEmbedder(ctx, embed.FactoryConfig{
		Provider: cfg.Embeddings.Provider,
		OpenAI: embed.OpenAIConfig{
			APIKey:    cfg.Embeddings.APIKey,
			BaseURL:   cfg.Embeddings.BaseURL,
			Model:     cfg.Embeddings.Model,
			BatchSize: cfg.Embeddings.BatchSize,
		},
		Ollama: embed.OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.Embeddings.Timeout,
			MaxRetries: cfg.Embeddings.MaxRetries,
		},
		CacheSize: cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	dims := cfg.Store.Dimensions
	if dims <= 0 {
		dims = embedder.Dimensions()
	}
	storeCfg := store.DefaultVectorIndexConfig(dims)
	if cfg.Store.Metric != "" {
		storeCfg.Metric = cfg.Store.Metric
	}
	if cfg.Store.M > 0 {
		storeCfg.M = cfg.Store.M
	}
	if cfg.Store.EfSearch > 0 {
		storeCfg.EfSearch = cfg.Store.EfSearch
	}

	if dir := filepath.Dir(cfg.Store.Path); cfg.Store.Path != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	local, err := store.NewLocal(cfg.Store.Path, storeCfg)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	rerankProvider := cfg.Rerank.Provider
	reranker, err := rerank.New(rerank.FactoryConfig{
		Provider: rerankProvider,
		Hosted: rerank.HostedConfig{
			APIKey:   cfg.Rerank.APIKey,
			Endpoint: cfg.Rerank.Endpoint,
			Model:    cfg.Rerank.Model,
		},
		Local: rerank.LocalConfig{PoolSize: cfg.Rerank.PoolSize},
	})
	if err != nil {
		slog.Warn("reranker unavailable, continuing without reranking",
			slog.String("provider", rerankProvider),
			slog.String("error", err.Error()))
		reranker = &rerank.NoOp{}
		rerankProvider = rerank.ProviderNone
	}

	svc, err := retrieval.NewService(local, embedder,
		retrieval.WithReranker(rerankProvider, reranker),
		retrieval.WithRequestTimeout(cfg.Retrieval.RequestTimeout),
	)
	if err != nil {
		_ = reranker.Close()
		_ = local.Close()
		_ = embedder.Close()
		return nil, err
	}

	return &engine{
		cfg:            cfg,
		store:          local,
		embedder:       embedder,
		service:        svc,
		rerankProvider: rerankProvider,
	}, nil
}
