package keyword

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "acme_reports", Key("acme", "reports"))
	assert.Equal(t, "reports", Key("", "reports"))
}

func TestManager_EnsureBuildsOnce(t *testing.T) {
	m := NewManager()
	var builds atomic.Int32

	build := func(ctx context.Context, add func(docID, text string)) error {
		builds.Add(1)
		add("a", "cat dog")
		add("b", "fish")
		return nil
	}

	idx, err := m.Ensure(context.Background(), "t_docs", build)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, StateReady, m.StateOf("t_docs"))

	again, err := m.Ensure(context.Background(), "t_docs", build)
	require.NoError(t, err)
	assert.Same(t, idx, again)
	assert.Equal(t, int32(1), builds.Load(), "second Ensure must reuse the built index")
}

func TestManager_BuildErrorAllowsRetry(t *testing.T) {
	m := NewManager()
	boom := errors.New("backend down")

	_, err := m.Ensure(context.Background(), "k", func(ctx context.Context, add func(string, string)) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateEmpty, m.StateOf("k"))

	idx, err := m.Ensure(context.Background(), "k", func(ctx context.Context, add func(string, string)) error {
		add("a", "recovered")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestManager_ConcurrentEnsure(t *testing.T) {
	m := NewManager()
	var builds atomic.Int32
	release := make(chan struct{})

	build := func(ctx context.Context, add func(string, string)) error {
		builds.Add(1)
		<-release
		add("a", "payload")
		return nil
	}

	var wg sync.WaitGroup
	results := make([]*ManagedIndex, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := m.Ensure(context.Background(), "shared", build)
			require.NoError(t, err)
			results[i] = idx
		}(i)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load(), "concurrent Ensure must share one build")
	for _, idx := range results {
		assert.Same(t, results[0], idx)
	}
}

func TestManager_ConcurrentSearchAndAdd(t *testing.T) {
	m := NewManager()
	idx, err := m.Ensure(context.Background(), "k", func(ctx context.Context, add func(string, string)) error {
		add("seed", "cat dog fish")
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				idx.Add("seed", "cat")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = idx.Search("cat", 5)
			}
		}()
	}
	wg.Wait()

	hits := idx.Search("cat", 5)
	require.NotEmpty(t, hits)
	assert.Equal(t, "seed", hits[0].DocID)
}

func TestManager_Invalidate(t *testing.T) {
	m := NewManager()
	_, err := m.Ensure(context.Background(), "k", func(ctx context.Context, add func(string, string)) error {
		add("a", "old")
		return nil
	})
	require.NoError(t, err)

	m.Invalidate("k")
	assert.Equal(t, StateEmpty, m.StateOf("k"))
	assert.Nil(t, m.Get("k"))
}
