// Package store implements the key-indexed entity store at the heart of
// the consolidation engine. Each logical entity is represented by a
// single golden record; repeated observations for the same key are
// folded together by a configured merge strategy, secondary lookup
// indices are kept consistent through a snapshot-diff protocol, and
// merges backed by an external synthesis client run under a bounded
// worker pool.
package store

import (
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/merge"
	"github.com/agentstation/goldrec/pkg/record"
)

// DefaultMaxWorkers is the number of concurrent external synthesis
// calls a batch may have in flight when MaxWorkers is not configured.
const DefaultMaxWorkers = 5

// Config configures a Store.
type Config struct {
	// Schema is the record schema for every entry. Required.
	Schema *record.Schema

	// KeyFunc derives the primary key from a record. Required.
	KeyFunc record.KeyFunc

	// Merger is the reconciliation policy for duplicate keys.
	// Defaults to the field-merge strategy.
	Merger merge.Merger

	// MaxWorkers bounds concurrent external synthesis calls. Only
	// consulted when Merger is external. Defaults to DefaultMaxWorkers;
	// negative values are rejected.
	MaxWorkers int

	// Limiter optionally paces external synthesis calls ahead of the
	// worker pool, for provider rate limits.
	Limiter *rate.Limiter
}

// Hook receives change notifications after a mutation has been applied
// to the store and all lookup indices. Hooks run in the mutating
// goroutine, inside the per-key critical section, so per-key event
// order matches apply order.
type Hook interface {
	OnAdd(key record.Key, rec *record.Record)
	OnUpdate(key record.Key, old, updated *record.Record)
	OnRemove(key record.Key, old *record.Record)
	OnClear()
}

// Store is the primary Key -> Record table. All methods are safe for
// concurrent use. Operations on the same key are strictly serialized;
// operations on distinct keys may run concurrently.
type Store struct {
	schema  *record.Schema
	keyFunc record.KeyFunc
	merger  merge.Merger
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu      sync.RWMutex
	entries map[record.Key]*record.Record
	lookups map[string]*lookupIndex

	klmu     sync.Mutex
	keyLocks map[record.Key]*sync.Mutex

	hmu   sync.RWMutex
	hooks []Hook
}

// New creates a store from the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.Schema == nil {
		return nil, &errors.ConfigError{Component: "store", Message: "schema is required"}
	}
	if cfg.KeyFunc == nil {
		return nil, &errors.ConfigError{Component: "store", Message: "key function is required"}
	}

	merger := cfg.Merger
	if merger == nil {
		var err error
		merger, err = merge.New(merge.FieldMerge, nil)
		if err != nil {
			return nil, err
		}
	}

	s := &Store{
		schema:   cfg.Schema,
		keyFunc:  cfg.KeyFunc,
		merger:   merger,
		limiter:  cfg.Limiter,
		entries:  make(map[record.Key]*record.Record),
		lookups:  make(map[string]*lookupIndex),
		keyLocks: make(map[record.Key]*sync.Mutex),
	}

	if merger.External() {
		workers := cfg.MaxWorkers
		if workers == 0 {
			workers = DefaultMaxWorkers
		}
		if workers < 0 {
			return nil, &errors.ConfigError{
				Component: "store",
				Message:   "max workers must be positive",
			}
		}
		s.sem = semaphore.NewWeighted(int64(workers))
	}

	return s, nil
}

// Schema returns the store's record schema.
func (s *Store) Schema() *record.Schema {
	return s.schema
}

// Strategy returns the name of the configured merge strategy.
func (s *Store) Strategy() string {
	return s.merger.Name()
}

// AddHook registers a change hook.
func (s *Store) AddHook(h Hook) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Get returns a copy of the record for key, and whether it exists.
func (s *Store) Get(key record.Key) (*record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Remove deletes the entry for key and purges it from every lookup
// index. It returns true iff an entry existed.
func (s *Store) Remove(key record.Key) bool {
	kl := s.keyLock(key)
	kl.Lock()
	defer kl.Unlock()

	s.mu.Lock()
	old, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, key)
	for _, l := range s.lookups {
		l.remove(key, old)
	}
	s.mu.Unlock()

	s.notifyRemove(key, old)
	return true
}

// Clear empties the store and every lookup index as one logical step.
// Lookup registrations survive; their buckets are emptied.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[record.Key]*record.Record)
	for _, l := range s.lookups {
		l.reset()
	}
	s.mu.Unlock()

	s.notifyClear()
}

// Keys returns all primary keys, sorted.
func (s *Store) Keys() []record.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]record.Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Values returns copies of all records, ordered by key.
func (s *Store) Values() []*record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]record.Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	values := make([]*record.Record, 0, len(keys))
	for _, k := range keys {
		values = append(values, s.entries[k].Clone())
	}
	return values
}

// Size returns the number of entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// keyLock returns the mutex serializing operations for one key.
func (s *Store) keyLock(key record.Key) *sync.Mutex {
	s.klmu.Lock()
	defer s.klmu.Unlock()

	kl, ok := s.keyLocks[key]
	if !ok {
		kl = &sync.Mutex{}
		s.keyLocks[key] = kl
	}
	return kl
}

// existing returns the live record for key, or nil. Callers must hold
// the key lock so the snapshot cannot race a writer for the same key.
func (s *Store) existing(key record.Key) *record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key]
}

// apply atomically replaces the entry for key and snapshot-diffs every
// registered lookup: the old record's derived key is removed before the
// new record's is inserted, so no stale association survives a merge
// that changes an indexed field.
func (s *Store) apply(key record.Key, old, updated *record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = updated
	for _, l := range s.lookups {
		if old != nil {
			l.remove(key, old)
		}
		l.add(key, updated)
	}
}

// Hooks receive copies: a hook that mutates its argument cannot reach
// past the snapshot-diff and stale a lookup.
func (s *Store) notifyAdd(key record.Key, rec *record.Record) {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	if len(s.hooks) == 0 {
		return
	}
	rec = rec.Clone()
	for _, h := range s.hooks {
		h.OnAdd(key, rec)
	}
}

func (s *Store) notifyUpdate(key record.Key, old, updated *record.Record) {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	if len(s.hooks) == 0 {
		return
	}
	old = old.Clone()
	updated = updated.Clone()
	for _, h := range s.hooks {
		h.OnUpdate(key, old, updated)
	}
}

func (s *Store) notifyRemove(key record.Key, old *record.Record) {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	if len(s.hooks) == 0 {
		return
	}
	old = old.Clone()
	for _, h := range s.hooks {
		h.OnRemove(key, old)
	}
}

func (s *Store) notifyClear() {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	for _, h := range s.hooks {
		h.OnClear()
	}
}
