package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

func TestNoOp_PreservesOrder(t *testing.T) {
	n := &NoOp{}

	results, err := n.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		if i > 0 {
			assert.Less(t, r.Score, results[i-1].Score)
		}
	}
}

func TestNoOp_TopN(t *testing.T) {
	n := &NoOp{}

	results, err := n.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNewHosted_MissingAPIKey(t *testing.T) {
	_, err := NewHosted(HostedConfig{})
	require.Error(t, err)

	var rerr *derrors.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, derrors.ErrCodeMissingCredentials, rerr.Code)
}

func TestHosted_Rerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "which doc", req.Query)
		assert.Len(t, req.Documents, 3)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.4},
			},
		})
	}))
	defer server.Close()

	h, err := NewHosted(HostedConfig{APIKey: "test-key", Endpoint: server.URL})
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	results, err := h.Rerank(context.Background(), "which doc", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, "c", results[0].Document)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, 0, results[1].Index)
}

func TestHosted_RerankRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	h, err := NewHosted(HostedConfig{APIKey: "test-key", Endpoint: server.URL})
	require.NoError(t, err)

	_, err = h.Rerank(context.Background(), "q", []string{"a"}, 0)
	require.Error(t, err)
	assert.True(t, derrors.IsRateLimit(err))
}

func TestHosted_RerankServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	h, err := NewHosted(HostedConfig{APIKey: "test-key", Endpoint: server.URL})
	require.NoError(t, err)

	_, err = h.Rerank(context.Background(), "q", []string{"a"}, 0)
	require.Error(t, err)

	var rerr *derrors.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, derrors.ErrCodeReranker, rerr.Code)
}

func TestHosted_EmptyDocuments(t *testing.T) {
	h, err := NewHosted(HostedConfig{APIKey: "test-key"})
	require.NoError(t, err)

	results, err := h.Rerank(context.Background(), "q", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHosted_ClosedRejectsCalls(t *testing.T) {
	h, err := NewHosted(HostedConfig{APIKey: "test-key"})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err = h.Rerank(context.Background(), "q", []string{"a"}, 0)
	require.Error(t, err)
	assert.False(t, h.Available(context.Background()))
}

func TestLocal_RanksRelevantFirst(t *testing.T) {
	l, err := NewLocal(LocalConfig{PoolSize: 2})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	docs := []string{
		"cooking pasta with fresh tomatoes",
		"quarterly revenue report for the finance team",
		"the finance team revenue numbers grew this quarter",
	}

	results, err := l.Rerank(context.Background(), "finance revenue report", docs, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].Index) // covers all three query terms
	assert.Equal(t, 0, results[2].Index) // no overlap at all
	assert.Equal(t, 0.0, results[2].Score)
}

func TestLocal_TopN(t *testing.T) {
	l, err := NewLocal(LocalConfig{})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	results, err := l.Rerank(context.Background(), "alpha", []string{"alpha one", "alpha two", "beta"}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestLocal_EmptyQueryFallsBackToOrder(t *testing.T) {
	l, err := NewLocal(LocalConfig{})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	results, err := l.Rerank(context.Background(), "   ", []string{"a", "b"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 1, results[1].Index)
}

func TestLexicalScore_Bounds(t *testing.T) {
	q := []string{"alpha", "beta"}

	assert.Equal(t, 0.0, lexicalScore(q, ""))
	assert.Equal(t, 0.0, lexicalScore(q, "gamma delta"))

	full := lexicalScore(q, "alpha beta")
	partial := lexicalScore(q, "alpha gamma")
	assert.Greater(t, full, partial)
	assert.LessOrEqual(t, full, 1.0)
}

func TestNew_ProviderDispatch(t *testing.T) {
	r, err := New(FactoryConfig{Provider: ""})
	require.NoError(t, err)
	assert.IsType(t, &NoOp{}, r)

	r, err = New(FactoryConfig{Provider: ProviderLocal})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, r)
	_ = r.Close()

	_, err = New(FactoryConfig{Provider: "mystery"})
	require.Error(t, err)

	var rerr *derrors.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, derrors.ErrCodeUnknownProvider, rerr.Code)
}
