package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/goldrec/pkg/errors"
)

func TestDumpAndLoadData(t *testing.T) {
	ctx := context.Background()

	t.Run("round_trip_into_empty_store", func(t *testing.T) {
		src := newStore(t)
		_, err := src.Add(ctx, contact(t, src.Schema(), map[string]any{"id": "c1", "name": "Ada", "tags": []string{"math"}}))
		require.NoError(t, err)
		_, err = src.Add(ctx, contact(t, src.Schema(), map[string]any{"id": "c2", "name": "Grace"}))
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, src.DumpData(path))

		dst := newStore(t)
		res, err := dst.LoadData(ctx, path)
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Equal(t, 2, res.Inserted)

		for _, key := range src.Keys() {
			want, _ := src.Get(key)
			got, ok := dst.Get(key)
			require.True(t, ok)
			assert.True(t, want.Equal(got))
		}
	})

	t.Run("gzip_round_trip", func(t *testing.T) {
		src := newStore(t)
		_, err := src.Add(ctx, contact(t, src.Schema(), map[string]any{"id": "c1", "name": "Ada"}))
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "data.json.gz")
		require.NoError(t, src.DumpData(path))

		// The artifact is compressed, not plain JSON.
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Greater(t, len(raw), 2)
		assert.Equal(t, byte(0x1f), raw[0])
		assert.Equal(t, byte(0x8b), raw[1])

		dst := newStore(t)
		res, err := dst.LoadData(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)
	})

	t.Run("load_into_nonempty_store_merges", func(t *testing.T) {
		src := newStore(t)
		_, err := src.Add(ctx, contact(t, src.Schema(), map[string]any{"id": "c1", "age": 36}))
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, src.DumpData(path))

		dst := newStore(t)
		_, err = dst.Add(ctx, contact(t, dst.Schema(), map[string]any{"id": "c1", "name": "Ada"}))
		require.NoError(t, err)

		res, err := dst.LoadData(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Merged)
		assert.Equal(t, 1, dst.Size())

		got, _ := dst.Get("c1")
		assert.Equal(t, "Ada", got.String("name"))
		assert.Equal(t, int64(36), got.Int("age"))
	})

	t.Run("creates_parent_directories", func(t *testing.T) {
		src := newStore(t)
		_, err := src.Add(ctx, contact(t, src.Schema(), map[string]any{"id": "c1"}))
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "snapshots", "latest", "data.json")
		require.NoError(t, src.DumpData(path))

		dst := newStore(t)
		res, err := dst.LoadData(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)
	})

	t.Run("missing_file_is_io_error", func(t *testing.T) {
		s := newStore(t)
		_, err := s.LoadData(ctx, filepath.Join(t.TempDir(), "absent.json"))
		var ioErr *errors.IOError
		assert.True(t, errors.As(err, &ioErr))
	})

	t.Run("malformed_file_is_parse_error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		s := newStore(t)
		_, err := s.LoadData(ctx, path)
		var parseErr *errors.ParseError
		assert.True(t, errors.As(err, &parseErr))
	})
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("round_trip", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1"}))
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "metadata.yaml")
		require.NoError(t, s.DumpMetadata(path))

		md, err := s.LoadMetadata(path)
		require.NoError(t, err)
		assert.Equal(t, "contact", md.Schema)
		assert.Equal(t, "field_merge", md.Strategy)
		assert.Equal(t, 1, md.Size)
		assert.False(t, md.SavedAt.IsZero())
		assert.Len(t, md.Fields, s.Schema().Len())
	})

	t.Run("schema_mismatch_rejected", func(t *testing.T) {
		s := newStore(t)
		path := filepath.Join(t.TempDir(), "metadata.yaml")
		require.NoError(t, os.WriteFile(path, []byte("schema: invoice\nstrategy: field_merge\nsize: 0\n"), 0o644))

		_, err := s.LoadMetadata(path)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("field_kind_mismatch_rejected", func(t *testing.T) {
		s := newStore(t)
		path := filepath.Join(t.TempDir(), "metadata.yaml")
		data := "schema: contact\nfields:\n  - name: age\n    kind: string\nstrategy: field_merge\nsize: 0\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		_, err := s.LoadMetadata(path)
		assert.True(t, errors.IsValidationError(err))
	})
}
