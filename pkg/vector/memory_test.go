package vector_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/goldrec/pkg/record"
	"github.com/agentstation/goldrec/pkg/vector"
)

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("search_orders_by_similarity", func(t *testing.T) {
		idx := vector.NewMemoryIndex()
		require.NoError(t, idx.Upsert(ctx,
			[]record.Key{"x", "y", "z"},
			[][]float32{{1, 0}, {0, 1}, {0.9, 0.1}},
		))

		matches, err := idx.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, record.Key("x"), matches[0].Key)
		assert.Equal(t, record.Key("z"), matches[1].Key)
		assert.Greater(t, matches[0].Score, matches[1].Score)
	})

	t.Run("upsert_replaces", func(t *testing.T) {
		idx := vector.NewMemoryIndex()
		require.NoError(t, idx.Upsert(ctx, []record.Key{"x"}, [][]float32{{1, 0}}))
		require.NoError(t, idx.Upsert(ctx, []record.Key{"x"}, [][]float32{{0, 1}}))
		assert.Equal(t, 1, idx.Size())

		matches, err := idx.Search(ctx, []float32{0, 1}, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
	})

	t.Run("delete_and_reset", func(t *testing.T) {
		idx := vector.NewMemoryIndex()
		require.NoError(t, idx.Upsert(ctx, []record.Key{"x", "y"}, [][]float32{{1, 0}, {0, 1}}))

		require.NoError(t, idx.Delete(ctx, []record.Key{"x", "unknown"}))
		assert.Equal(t, 1, idx.Size())

		require.NoError(t, idx.Reset())
		assert.Equal(t, 0, idx.Size())
	})

	t.Run("mismatched_counts_rejected", func(t *testing.T) {
		idx := vector.NewMemoryIndex()
		err := idx.Upsert(ctx, []record.Key{"x", "y"}, [][]float32{{1}})
		assert.Error(t, err)
	})

	t.Run("invalid_k_rejected", func(t *testing.T) {
		idx := vector.NewMemoryIndex()
		_, err := idx.Search(ctx, []float32{1}, 0)
		assert.Error(t, err)
	})

	t.Run("persist_and_load", func(t *testing.T) {
		idx := vector.NewMemoryIndex()
		require.NoError(t, idx.Upsert(ctx, []record.Key{"x", "y"}, [][]float32{{1, 0}, {0, 1}}))

		path := filepath.Join(t.TempDir(), "index.vec")
		require.NoError(t, idx.Persist(path))

		loaded := vector.NewMemoryIndex()
		require.NoError(t, loaded.Load(path))
		assert.Equal(t, 2, loaded.Size())

		matches, err := loaded.Search(ctx, []float32{1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, record.Key("x"), matches[0].Key)
	})
}
