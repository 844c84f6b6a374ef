package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// OpenAIConfig configures the OpenAI-compatible embedding provider.
// BaseURL allows pointing at any API that speaks the OpenAI embeddings
// protocol (Azure, Nebius, local gateways).
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API
type OpenAIEmbedder struct {
	client    *openai.Client
	modelName string
	dims      int
	batchSize int
}

// Verify interface implementation at compile time
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates a new OpenAI embedder. A missing API key is a
// configuration error and is reported here, not on the first Embed call.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, derrors.New(derrors.ErrCodeMissingCredentials,
			"openai embedding provider requires an API key", nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		modelName: cfg.Model,
		dims:      dims,
		batchSize: cfg.BatchSize,
	}, nil
}

// Embed generates embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	embeddings, err := e.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, derrors.ProviderError(derrors.ErrCodeEmbedding, "empty embedding response", nil)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting into
// API-sized batches. Empty texts map to zero vectors without an API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type indexedText struct {
		idx  int
		text string
	}
	var nonEmpty []indexedText
	results := make([][]float32, len(texts))

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
		} else {
			nonEmpty = append(nonEmpty, indexedText{i, text})
		}
	}

	for start := 0; start < len(nonEmpty); start += e.batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + e.batchSize
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}
		batch := nonEmpty[start:end]

		batchTexts := make([]string, len(batch))
		for i, it := range batch {
			batchTexts[i] = it.text
		}

		embeddings, err := e.doEmbed(ctx, batchTexts)
		if err != nil {
			return nil, err
		}
		if len(embeddings) != len(batch) {
			return nil, derrors.ProviderError(derrors.ErrCodeEmbedding,
				fmt.Sprintf("embedding count mismatch: got %d for %d texts", len(embeddings), len(batch)), nil)
		}
		for i, emb := range embeddings {
			results[batch[i].idx] = emb
		}
	}

	return results, nil
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.modelName),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = normalizeVector(d.Embedding)
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier
func (e *OpenAIEmbedder) ModelName() string {
	return e.modelName
}

// Available checks the API via ListModels, which costs no tokens.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx)
	return err == nil
}

// Close releases resources
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// classifyOpenAIError maps API failures onto the retrieval error taxonomy so
// callers can distinguish rate limits and timeouts from hard provider faults.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return derrors.TimeoutError("embedding request timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return derrors.RateLimitError(
				fmt.Sprintf("embedding API rate limited: %s", apiErr.Message), err)
		case http.StatusGatewayTimeout, http.StatusRequestTimeout:
			return derrors.TimeoutError(
				fmt.Sprintf("embedding API timed out: %s", apiErr.Message), err)
		}
		return derrors.ProviderError(derrors.ErrCodeEmbedding,
			fmt.Sprintf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return derrors.RateLimitError(
				fmt.Sprintf("embedding API rate limited: %s", errDetail(reqErr.Body)), err)
		}
		return derrors.ProviderError(derrors.ErrCodeEmbedding,
			fmt.Sprintf("embedding API error %d: %s", reqErr.HTTPStatusCode, errDetail(reqErr.Body)), err)
	}

	return derrors.ProviderError(derrors.ErrCodeEmbedding, "embedding request failed", err)
}

// errDetail extracts the "detail" field from a JSON error body when present.
func errDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return string(body)
}
