package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/record"
)

func byCompany(r *record.Record) (string, bool) {
	return r.String("company"), r.Has("company")
}

func TestCreateLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("backfills_existing_entries", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "company": "Acme"}))
		require.NoError(t, err)
		_, err = s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c2", "company": "Acme"}))
		require.NoError(t, err)

		require.NoError(t, s.CreateLookup("by_company", byCompany))

		recs := s.GetByLookup("by_company", "Acme")
		require.Len(t, recs, 2)
		assert.Equal(t, "c1", recs[0].String("id"))
		assert.Equal(t, "c2", recs[1].String("id"))
	})

	t.Run("duplicate_name_rejected", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLookup("by_company", byCompany))

		err := s.CreateLookup("by_company", byCompany)
		var dup *errors.DuplicateLookupError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "by_company", dup.Name)
		assert.True(t, errors.IsAlreadyExists(err))
	})

	t.Run("empty_name_rejected", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.CreateLookup("", byCompany))
	})

	t.Run("nil_func_rejected", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.CreateLookup("bad", nil))
	})
}

func TestGetByLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_lookup_is_empty_not_error", func(t *testing.T) {
		s := newStore(t)
		assert.Empty(t, s.GetByLookup("missing", "x"))
	})

	t.Run("no_matches_is_empty", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLookup("by_company", byCompany))
		assert.Empty(t, s.GetByLookup("by_company", "Nowhere"))
	})

	t.Run("results_sorted_by_primary_key", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLookup("by_company", byCompany))
		for _, id := range []string{"c3", "c1", "c2"} {
			_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": id, "company": "Acme"}))
			require.NoError(t, err)
		}

		keys := s.GetKeysByLookup("by_company", "Acme")
		assert.Equal(t, []record.Key{"c1", "c2", "c3"}, keys)
	})

	t.Run("excluded_records_not_indexed", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateLookup("by_company", byCompany))
		_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1"}))
		require.NoError(t, err)

		assert.Empty(t, s.GetByLookup("by_company", ""))
	})
}

func TestLookupConsistencyOnMerge(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateLookup("by_company", byCompany))

	_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "company": "Acme"}))
	require.NoError(t, err)

	// The merge overwrites the indexed field; the old association must
	// not survive.
	_, err = s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "company": "Globex"}))
	require.NoError(t, err)

	assert.Empty(t, s.GetByLookup("by_company", "Acme"))

	now := s.GetByLookup("by_company", "Globex")
	require.Len(t, now, 1)
	assert.Equal(t, "c1", now[0].String("id"))
}

func TestLookupConsistencyOnRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateLookup("by_company", byCompany))

	_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "company": "Acme"}))
	require.NoError(t, err)
	require.True(t, s.Remove("c1"))

	assert.Empty(t, s.GetByLookup("by_company", "Acme"))
}

func TestDropLookup(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateLookup("by_company", byCompany))

	assert.True(t, s.DropLookup("by_company"))
	assert.False(t, s.DropLookup("by_company"))

	assert.Empty(t, s.GetByLookup("by_company", "Acme"))
}

func TestListLookups(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateLookup("zeta", byCompany))
	require.NoError(t, s.CreateLookup("alpha", byCompany))

	assert.Equal(t, []string{"alpha", "zeta"}, s.ListLookups())
}
