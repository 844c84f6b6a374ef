package embed

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/t-simwa/documind-document-analyzer-sub000/internal/errors"
)

// mockEmbedder counts calls so cache behavior is observable.
type mockEmbedder struct {
	dims  int
	calls int
	fail  bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.fail {
		return nil, fmt.Errorf("mock failure")
	}
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int                    { return m.dims }
func (m *mockEmbedder) ModelName() string                  { return "mock-model" }
func (m *mockEmbedder) Available(_ context.Context) bool   { return !m.fail }
func (m *mockEmbedder) Close() error                       { return nil }

func TestCachedEmbedder_HitSkipsInner(t *testing.T) {
	inner := &mockEmbedder{dims: 4}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_BatchPartialHit(t *testing.T) {
	inner := &mockEmbedder{dims: 4}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "cached")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	results, err := cached.EmbedBatch(ctx, []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, inner.calls) // only "fresh" hits the inner embedder
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &mockEmbedder{dims: 4, fail: true}
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "boom")
	require.Error(t, err)

	inner.fail = false
	_, err = cached.Embed(context.Background(), "boom")
	require.NoError(t, err)
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := &mockEmbedder{dims: 8}
	cached := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 8, cached.Dimensions())
	assert.Equal(t, "mock-model", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, Embedder(inner), cached.Inner())
}

func TestNewOpenAIEmbedder_MissingAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{})
	require.Error(t, err)

	var rerr *derrors.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, derrors.ErrCodeMissingCredentials, rerr.Code)
	assert.Equal(t, derrors.CategoryConfig, rerr.Category)
}

func TestNewOpenAIEmbedder_Defaults(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, e.ModelName())
	assert.Equal(t, DefaultDimensions, e.Dimensions())
}

func TestOpenAIEmbedder_EmptyTextZeroVector(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "test-key", Dimensions: 4})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), vec)
}

func TestClassifyOpenAIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "rate limited",
			err:      &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "quota"},
			wantCode: derrors.ErrCodeRateLimited,
		},
		{
			name:     "gateway timeout",
			err:      &openai.APIError{HTTPStatusCode: http.StatusGatewayTimeout, Message: "slow"},
			wantCode: derrors.ErrCodeTimeout,
		},
		{
			name:     "server error",
			err:      &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "oops"},
			wantCode: derrors.ErrCodeEmbedding,
		},
		{
			name:     "context deadline",
			err:      context.DeadlineExceeded,
			wantCode: derrors.ErrCodeTimeout,
		},
		{
			name:     "opaque",
			err:      fmt.Errorf("connection refused"),
			wantCode: derrors.ErrCodeEmbedding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyOpenAIError(tt.err)
			var rerr *derrors.RetrievalError
			require.ErrorAs(t, classified, &rerr)
			assert.Equal(t, tt.wantCode, rerr.Code)
		})
	}
}

func TestOllamaEmbedder_EmptyTextZeroVector(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), vec)
}

func TestOllamaEmbedder_ClosedRejectsCalls(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close()) // idempotent

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), FactoryConfig{Provider: "mystery"})
	require.Error(t, err)

	var rerr *derrors.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, derrors.ErrCodeUnknownProvider, rerr.Code)
}

func TestNewEmbedder_OpenAIWrappedInCache(t *testing.T) {
	e, err := NewEmbedder(context.Background(), FactoryConfig{
		Provider: ProviderOpenAI,
		OpenAI:   OpenAIConfig{APIKey: "test-key", Dimensions: 4},
	})
	require.NoError(t, err)

	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok)
	assert.Equal(t, 4, e.Dimensions())
}

func TestNormalizeVector(t *testing.T) {
	v := normalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := normalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
