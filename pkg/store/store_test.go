package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/merge"
	"github.com/agentstation/goldrec/pkg/record"
	"github.com/agentstation/goldrec/pkg/store"
)

func contactSchema(t *testing.T) *record.Schema {
	t.Helper()
	schema, err := record.NewSchema("contact",
		record.Field{Name: "id", Kind: record.KindString, Required: true},
		record.Field{Name: "name", Kind: record.KindString},
		record.Field{Name: "company", Kind: record.KindString},
		record.Field{Name: "age", Kind: record.KindInt},
		record.Field{Name: "tags", Kind: record.KindStringList},
	)
	require.NoError(t, err)
	return schema
}

func keyByID(r *record.Record) (record.Key, error) {
	id := r.String("id")
	if id == "" {
		return "", errors.NewKeyExtractionError("id field is not set", nil)
	}
	return record.Key(id), nil
}

func newStore(t *testing.T, opts ...func(*store.Config)) *store.Store {
	t.Helper()
	cfg := store.Config{Schema: contactSchema(t), KeyFunc: keyByID}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := store.New(cfg)
	require.NoError(t, err)
	return s
}

func contact(t *testing.T, schema *record.Schema, values map[string]any) *record.Record {
	t.Helper()
	r, err := record.Build(schema, values)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	t.Run("requires_schema", func(t *testing.T) {
		_, err := store.New(store.Config{KeyFunc: keyByID})
		assert.Error(t, err)
	})

	t.Run("requires_key_func", func(t *testing.T) {
		_, err := store.New(store.Config{Schema: contactSchema(t)})
		assert.Error(t, err)
	})

	t.Run("defaults_to_field_merge", func(t *testing.T) {
		s := newStore(t)
		assert.Equal(t, "field_merge", s.Strategy())
	})
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("first_add_inserts_unchanged", func(t *testing.T) {
		s := newStore(t)
		rec := contact(t, s.Schema(), map[string]any{"id": "c1", "name": "Ada"})

		stored, err := s.Add(ctx, rec)
		require.NoError(t, err)
		assert.True(t, rec.Equal(stored))
		assert.Equal(t, 1, s.Size())
	})

	t.Run("same_key_merges_not_duplicates", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "name": "Ada"}))
		require.NoError(t, err)
		_, err = s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "age": 36}))
		require.NoError(t, err)

		assert.Equal(t, 1, s.Size())
		got, ok := s.Get("c1")
		require.True(t, ok)
		assert.Equal(t, "Ada", got.String("name"))
		assert.Equal(t, int64(36), got.Int("age"))
	})

	t.Run("key_extraction_failure_leaves_store_unchanged", func(t *testing.T) {
		s := newStore(t)
		rec := record.New(s.Schema())
		require.NoError(t, rec.Set("name", "nameless"))

		_, err := s.Add(ctx, rec)
		assert.True(t, errors.IsValidationError(err))
		assert.Equal(t, 0, s.Size())
	})

	t.Run("nil_record_rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Add(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("returned_record_is_a_copy", func(t *testing.T) {
		s := newStore(t)
		stored, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "name": "Ada"}))
		require.NoError(t, err)

		require.NoError(t, stored.Set("name", "mutated"))
		got, _ := s.Get("c1")
		assert.Equal(t, "Ada", got.String("name"))
	})
}

func TestKeepExistingStore(t *testing.T) {
	ctx := context.Background()
	merger, err := merge.New(merge.KeepExisting, nil)
	require.NoError(t, err)
	s := newStore(t, func(c *store.Config) { c.Merger = merger })

	first := contact(t, s.Schema(), map[string]any{"id": "c1", "name": "Ada"})
	_, err = s.Add(ctx, first)
	require.NoError(t, err)
	_, err = s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "name": "Grace"}))
	require.NoError(t, err)

	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.True(t, first.Equal(got))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "name": "Ada"}))
	require.NoError(t, err)

	assert.True(t, s.Remove("c1"))
	assert.False(t, s.Remove("c1"))
	_, ok := s.Get("c1")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": id}))
		require.NoError(t, err)
	}
	require.NoError(t, s.CreateLookup("by_name", func(r *record.Record) (string, bool) {
		return r.String("name"), r.Has("name")
	}))

	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, []string{"by_name"}, s.ListLookups())

	assert.Empty(t, s.GetByLookup("by_name", "Ada"))
}

func TestKeysAndValues(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, id := range []string{"c", "a", "b"} {
		_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": id}))
		require.NoError(t, err)
	}

	assert.Equal(t, []record.Key{"a", "b", "c"}, s.Keys())

	values := s.Values()
	require.Len(t, values, 3)
	assert.Equal(t, "a", values[0].String("id"))
	assert.Equal(t, "c", values[2].String("id"))
}

type captureHook struct {
	added   []record.Key
	updated []record.Key
	removed []record.Key
	cleared int
}

func (h *captureHook) OnAdd(key record.Key, _ *record.Record)             { h.added = append(h.added, key) }
func (h *captureHook) OnUpdate(key record.Key, _, _ *record.Record)       { h.updated = append(h.updated, key) }
func (h *captureHook) OnRemove(key record.Key, _ *record.Record)          { h.removed = append(h.removed, key) }
func (h *captureHook) OnClear()                                           { h.cleared++ }

func TestHooks(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	hook := &captureHook{}
	s.AddHook(hook)

	_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "name": "Ada"}))
	require.NoError(t, err)
	_, err = s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "age": 36}))
	require.NoError(t, err)
	s.Remove("c1")
	s.Clear()

	assert.Equal(t, []record.Key{"c1"}, hook.added)
	assert.Equal(t, []record.Key{"c1"}, hook.updated)
	assert.Equal(t, []record.Key{"c1"}, hook.removed)
	assert.Equal(t, 1, hook.cleared)
}

// mutatingHook rewrites an indexed field on every notification.
type mutatingHook struct{}

func (mutatingHook) OnAdd(_ record.Key, rec *record.Record)       { _ = rec.Set("company", "Mutated") }
func (mutatingHook) OnUpdate(_ record.Key, _, rec *record.Record) { _ = rec.Set("company", "Mutated") }
func (mutatingHook) OnRemove(record.Key, *record.Record)          {}
func (mutatingHook) OnClear()                                     {}

func TestHooksReceiveCopies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateLookup("by_company", byCompany))
	s.AddHook(mutatingHook{})

	_, err := s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "company": "Acme"}))
	require.NoError(t, err)
	_, err = s.Add(ctx, contact(t, s.Schema(), map[string]any{"id": "c1", "age": 36}))
	require.NoError(t, err)

	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "Acme", got.String("company"))

	recs := s.GetByLookup("by_company", "Acme")
	require.Len(t, recs, 1)
	assert.Empty(t, s.GetByLookup("by_company", "Mutated"))
}
