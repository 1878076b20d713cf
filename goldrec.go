// Package goldrec is a consolidation engine: a concurrent, in-memory
// golden-record store that folds repeated observations of the same
// entity into a single record per key. Reconciliation is pluggable,
// from pure field-level merging to LLM-backed synthesis running under
// a bounded worker pool, with secondary lookup indices and an optional
// vector index kept consistent with the store.
package goldrec

import (
	"context"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/merge"
	"github.com/agentstation/goldrec/pkg/record"
	"github.com/agentstation/goldrec/pkg/save"
	"github.com/agentstation/goldrec/pkg/store"
	"github.com/agentstation/goldrec/pkg/vector"
)

// Engine is the consolidation engine facade.
type Engine interface {
	// Schema returns the record schema every entry conforms to.
	Schema() *record.Schema

	// Strategy returns the name of the configured merge strategy.
	Strategy() string

	// NewRecord returns an empty record bound to the engine's schema.
	NewRecord() *record.Record

	// Add folds one record into the store and returns a copy of the
	// resulting golden record.
	Add(ctx context.Context, rec *record.Record) (*record.Record, error)

	// AddBatch folds a slice of records into the store, best effort.
	AddBatch(ctx context.Context, recs []*record.Record) *store.BatchResult

	// Get returns a copy of the record for key.
	Get(key record.Key) (*record.Record, bool)

	// Remove deletes the entry for key from the store and every index.
	Remove(key record.Key) bool

	// Clear empties the store and every index.
	Clear()

	// Keys returns all primary keys, sorted.
	Keys() []record.Key

	// Values returns copies of all records, ordered by key.
	Values() []*record.Record

	// Size returns the number of entries.
	Size() int

	// CreateLookup registers a named secondary index, backfilled from
	// current entries.
	CreateLookup(name string, fn store.LookupFunc) error

	// DropLookup removes a named secondary index.
	DropLookup(name string) bool

	// ListLookups returns the registered index names, sorted.
	ListLookups() []string

	// GetByLookup returns the records matching a derived lookup key,
	// ordered by primary key. Unknown names yield an empty slice.
	GetByLookup(name, lookupKey string) []*record.Record

	// OnRecordAdded registers a hook fired after a new key is inserted.
	OnRecordAdded(h RecordAddedHook)

	// OnRecordUpdated registers a hook fired after a merge replaces an
	// entry.
	OnRecordUpdated(h RecordUpdatedHook)

	// OnRecordRemoved registers a hook fired after an entry is removed.
	OnRecordRemoved(h RecordRemovedHook)

	// BuildIndex synchronizes the vector index with the store; force
	// rebuilds it from scratch.
	BuildIndex(ctx context.Context, force bool) error

	// SyncIndex applies pending store changes to the vector index.
	SyncIndex(ctx context.Context) error

	// Search embeds the query and returns the k most similar records.
	Search(ctx context.Context, query string, k int) ([]*record.Record, error)

	// Save writes the data, metadata, and index artifacts under dir.
	Save(ctx context.Context, dir string, opts ...save.Option) error

	// Load restores artifacts from dir, feeding records through the
	// normal add path.
	Load(ctx context.Context, dir string, opts ...save.Option) (*store.BatchResult, error)
}

type engine struct {
	store   *store.Store
	adapter *vector.SyncAdapter
	hooks   *hookSet
}

// New creates an engine for the given schema and key function. By
// default records reconcile with the field-merge strategy; see the
// With* options for LLM-backed strategies, worker-pool sizing, and
// vector search.
func New(schema *record.Schema, keyFunc record.KeyFunc, opts ...Option) (Engine, error) {
	if schema == nil {
		return nil, &errors.ConfigError{Component: "engine", Message: "schema is required"}
	}
	if keyFunc == nil {
		return nil, &errors.ConfigError{Component: "engine", Message: "key function is required"}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	merger := cfg.merger
	if merger == nil {
		var err error
		merger, err = merge.New(cfg.strategy, &merge.Config{
			Completer:   cfg.completer,
			Schema:      schema,
			CallTimeout: cfg.callTimeout,
			Rule:        cfg.rule,
			RuleContext: cfg.ruleContext,
		})
		if err != nil {
			return nil, err
		}
	}

	st, err := store.New(store.Config{
		Schema:     schema,
		KeyFunc:    keyFunc,
		Merger:     merger,
		MaxWorkers: cfg.maxWorkers,
		Limiter:    cfg.limiter,
	})
	if err != nil {
		return nil, err
	}

	e := &engine{
		store: st,
		hooks: &hookSet{},
	}
	st.AddHook(e.hooks)

	if cfg.index != nil && cfg.embedder == nil {
		return nil, &errors.ConfigError{
			Component: "engine",
			Message:   "a vector index requires an embedder",
		}
	}
	if cfg.embedder != nil {
		index := cfg.index
		if index == nil {
			index = vector.NewMemoryIndex()
		}
		var vopts []vector.Option
		if len(cfg.indexFields) > 0 {
			vopts = append(vopts, vector.WithFields(cfg.indexFields...))
		}
		if cfg.embedBatchSize > 0 {
			vopts = append(vopts, vector.WithBatchSize(cfg.embedBatchSize))
		}
		adapter, err := vector.NewSyncAdapter(st, cfg.embedder, index, vopts...)
		if err != nil {
			return nil, err
		}
		st.AddHook(adapter)
		e.adapter = adapter
	}

	return e, nil
}

func (e *engine) Schema() *record.Schema { return e.store.Schema() }

func (e *engine) Strategy() string { return e.store.Strategy() }

func (e *engine) NewRecord() *record.Record { return record.New(e.store.Schema()) }

func (e *engine) Add(ctx context.Context, rec *record.Record) (*record.Record, error) {
	return e.store.Add(ctx, rec)
}

func (e *engine) AddBatch(ctx context.Context, recs []*record.Record) *store.BatchResult {
	return e.store.AddBatch(ctx, recs)
}

func (e *engine) Get(key record.Key) (*record.Record, bool) { return e.store.Get(key) }

func (e *engine) Remove(key record.Key) bool { return e.store.Remove(key) }

func (e *engine) Clear() { e.store.Clear() }

func (e *engine) Keys() []record.Key { return e.store.Keys() }

func (e *engine) Values() []*record.Record { return e.store.Values() }

func (e *engine) Size() int { return e.store.Size() }

func (e *engine) CreateLookup(name string, fn store.LookupFunc) error {
	return e.store.CreateLookup(name, fn)
}

func (e *engine) DropLookup(name string) bool { return e.store.DropLookup(name) }

func (e *engine) ListLookups() []string { return e.store.ListLookups() }

func (e *engine) GetByLookup(name, lookupKey string) []*record.Record {
	return e.store.GetByLookup(name, lookupKey)
}

func (e *engine) OnRecordAdded(h RecordAddedHook) { e.hooks.addAdded(h) }

func (e *engine) OnRecordUpdated(h RecordUpdatedHook) { e.hooks.addUpdated(h) }

func (e *engine) OnRecordRemoved(h RecordRemovedHook) { e.hooks.addRemoved(h) }

func (e *engine) BuildIndex(ctx context.Context, force bool) error {
	if e.adapter == nil {
		return errVectorNotConfigured()
	}
	return e.adapter.BuildIndex(ctx, force)
}

func (e *engine) SyncIndex(ctx context.Context) error {
	if e.adapter == nil {
		return errVectorNotConfigured()
	}
	return e.adapter.Sync(ctx)
}

func (e *engine) Search(ctx context.Context, query string, k int) ([]*record.Record, error) {
	if e.adapter == nil {
		return nil, errVectorNotConfigured()
	}
	return e.adapter.Search(ctx, query, k)
}

func errVectorNotConfigured() error {
	return &errors.ConfigError{
		Component: "engine",
		Message:   "vector search requires an embedder; see WithEmbedder",
	}
}
