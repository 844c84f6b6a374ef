package embed

import (
	"context"
	"fmt"
	"strings"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// FactoryConfig selects and configures an embedding provider.
type FactoryConfig struct {
	// Provider is one of ProviderOpenAI or ProviderOllama. Unknown values
	// are rejected at construction, never deferred to the first call.
	Provider string

	OpenAI OpenAIConfig
	Ollama OllamaConfig

	// CacheSize bounds the query embedding LRU. Zero means the default.
	CacheSize int
}

// NewEmbedder constructs the configured provider wrapped in an LRU cache.
func NewEmbedder(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(cfg.OpenAI)
	case ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, cfg.Ollama)
	default:
		return nil, derrors.New(derrors.ErrCodeUnknownProvider,
			fmt.Sprintf("unknown embedding provider %q (want %s or %s)",
				cfg.Provider, ProviderOpenAI, ProviderOllama), nil)
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
