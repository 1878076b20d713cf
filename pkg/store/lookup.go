package store

import (
	"sort"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/record"
)

// LookupFunc derives a secondary lookup key from a record. Returning
// false excludes the record from the index.
type LookupFunc func(*record.Record) (string, bool)

// lookupIndex maps a derived lookup key to the set of primary keys
// whose records currently produce it. Mutations happen under the
// store's write lock.
type lookupIndex struct {
	extract LookupFunc
	buckets map[string]map[record.Key]struct{}
}

func (l *lookupIndex) add(key record.Key, rec *record.Record) {
	lk, ok := l.extract(rec)
	if !ok {
		return
	}
	bucket, ok := l.buckets[lk]
	if !ok {
		bucket = make(map[record.Key]struct{})
		l.buckets[lk] = bucket
	}
	bucket[key] = struct{}{}
}

func (l *lookupIndex) remove(key record.Key, rec *record.Record) {
	lk, ok := l.extract(rec)
	if !ok {
		return
	}
	bucket, ok := l.buckets[lk]
	if !ok {
		return
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(l.buckets, lk)
	}
}

func (l *lookupIndex) reset() {
	l.buckets = make(map[string]map[record.Key]struct{})
}

// CreateLookup registers a named secondary index and backfills it from
// every record already in the store. Registering a name twice returns a
// DuplicateLookupError.
func (s *Store) CreateLookup(name string, fn LookupFunc) error {
	if name == "" {
		return errors.NewValidationError("lookup", name, "lookup name must not be empty")
	}
	if fn == nil {
		return errors.NewValidationError("lookup", name, "lookup function must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookups[name]; ok {
		return &errors.DuplicateLookupError{Name: name}
	}

	l := &lookupIndex{
		extract: fn,
		buckets: make(map[string]map[record.Key]struct{}),
	}
	for key, rec := range s.entries {
		l.add(key, rec)
	}
	s.lookups[name] = l
	return nil
}

// DropLookup removes a named index. It returns true iff the index
// existed.
func (s *Store) DropLookup(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookups[name]; !ok {
		return false
	}
	delete(s.lookups, name)
	return true
}

// ListLookups returns the registered index names, sorted.
func (s *Store) ListLookups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.lookups))
	for name := range s.lookups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetByLookup returns copies of every record whose derived key under
// the named index equals lookupKey, ordered by primary key. An unknown
// index name or an unmatched lookup key yields an empty slice, never
// an error.
func (s *Store) GetByLookup(name, lookupKey string) []*record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lookups[name]
	if !ok {
		return []*record.Record{}
	}

	bucket := l.buckets[lookupKey]
	keys := make([]record.Key, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]*record.Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := s.entries[k]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// GetKeysByLookup returns the primary keys currently associated with
// lookupKey under the named index, sorted. Unknown names yield an
// empty slice.
func (s *Store) GetKeysByLookup(name, lookupKey string) []record.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lookups[name]
	if !ok {
		return []record.Key{}
	}

	bucket := l.buckets[lookupKey]
	keys := make([]record.Key, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
