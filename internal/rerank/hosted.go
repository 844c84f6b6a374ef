package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// Hosted reranker configuration defaults
const (
	DefaultHostedEndpoint = "https://api.cohere.com/v2"
	DefaultHostedModel    = "rerank-v3.5"
	DefaultHostedTimeout  = 30 * time.Second
)

// HostedConfig holds configuration for the hosted reranker API.
type HostedConfig struct {
	// APIKey authenticates against the rerank API. Required.
	APIKey string

	// Endpoint is the API base URL (default: Cohere v2)
	Endpoint string

	// Model is the rerank model identifier
	Model string

	// Timeout is the request timeout (default: 30s)
	Timeout time.Duration
}

// Hosted calls an external rerank API (Cohere wire format).
type Hosted struct {
	client   *http.Client
	config   HostedConfig
	endpoint string

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Reranker = (*Hosted)(nil)

// NewHosted creates a hosted reranker client. A missing API key is a
// configuration error reported here, never on the first Rerank call.
func NewHosted(cfg HostedConfig) (*Hosted, error) {
	if cfg.APIKey == "" {
		return nil, derrors.New(derrors.ErrCodeMissingCredentials,
			"hosted reranker requires an API key", nil)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultHostedEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHostedModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultHostedTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	return &Hosted{
		client:   client,
		config:   cfg,
		endpoint: cfg.Endpoint,
	}, nil
}

// rerankRequest is the JSON request to the /rerank endpoint
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// rerankResponse is the JSON response from the /rerank endpoint
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores and reorders documents by relevance to the query.
func (h *Hosted) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	h.mu.RUnlock()

	if len(documents) == 0 {
		return []Result{}, nil
	}

	reqBody := rerankRequest{
		Model:     h.config.Model,
		Query:     query,
		Documents: documents,
	}
	if topN > 0 {
		reqBody.TopN = topN
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, h.endpoint+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.config.APIKey)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, derrors.TimeoutError("rerank request timed out", err)
		}
		return nil, derrors.ProviderError(derrors.ErrCodeReranker, "rerank request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, derrors.RateLimitError(
				fmt.Sprintf("rerank API rate limited: %s", string(body)), nil)
		}
		return nil, derrors.ProviderError(derrors.ErrCodeReranker,
			fmt.Sprintf("rerank failed (status %d): %s", resp.StatusCode, string(body)), nil)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, derrors.ProviderError(derrors.ErrCodeReranker, "failed to decode rerank response", err)
	}

	results := make([]Result, 0, len(result.Results))
	for _, r := range result.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue // defensive against malformed provider output
		}
		results = append(results, Result{
			Index:    r.Index,
			Score:    r.RelevanceScore,
			Document: documents[r.Index],
		})
	}

	// The API returns results sorted, but that is its contract, not ours.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	slog.Debug("hosted_rerank_complete",
		slog.Int("doc_count", len(documents)),
		slog.Int("result_count", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// Available reports whether the client can still issue requests. The hosted
// API has no free health endpoint, so this only reflects local state.
func (h *Hosted) Available(_ context.Context) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.closed
}

// Close releases HTTP connections. Idempotent.
func (h *Hosted) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.client.CloseIdleConnections()
	return nil
}
