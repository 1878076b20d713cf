package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/logging"
	"github.com/agentstation/goldrec/pkg/record"
)

// DefaultBatchSize is the number of records embedded per client call
// when no batch size is configured.
const DefaultBatchSize = 32

// SyncAdapter bridges a store and a similarity index. Registered as a
// store hook it accumulates changed keys in a dirty set; Sync drains
// the set, embeds the affected records in batches, and upserts them.
// The index therefore lags the store between syncs but never diverges
// from it after one.
type SyncAdapter struct {
	source   Source
	embedder Embedder
	index    Index

	fields    []string
	batchSize int

	mu      sync.Mutex
	dirty   map[record.Key]struct{}
	removed map[record.Key]struct{}
	cleared bool
}

// Option configures a SyncAdapter.
type Option func(*SyncAdapter)

// WithFields restricts embedding text to the named schema fields. By
// default the full record is embedded.
func WithFields(fields ...string) Option {
	return func(a *SyncAdapter) {
		a.fields = append([]string(nil), fields...)
	}
}

// WithBatchSize sets how many records are embedded per client call.
func WithBatchSize(n int) Option {
	return func(a *SyncAdapter) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// NewSyncAdapter creates an adapter over the given source, embedder,
// and index.
func NewSyncAdapter(source Source, embedder Embedder, index Index, opts ...Option) (*SyncAdapter, error) {
	if source == nil {
		return nil, &errors.ConfigError{Component: "vector", Message: "source is required"}
	}
	if embedder == nil {
		return nil, &errors.ConfigError{Component: "vector", Message: "embedder is required"}
	}
	if index == nil {
		return nil, &errors.ConfigError{Component: "vector", Message: "index is required"}
	}

	a := &SyncAdapter{
		source:    source,
		embedder:  embedder,
		index:     index,
		batchSize: DefaultBatchSize,
		dirty:     make(map[record.Key]struct{}),
		removed:   make(map[record.Key]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// OnAdd implements the store hook.
func (a *SyncAdapter) OnAdd(key record.Key, _ *record.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty[key] = struct{}{}
	delete(a.removed, key)
}

// OnUpdate implements the store hook.
func (a *SyncAdapter) OnUpdate(key record.Key, _, _ *record.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty[key] = struct{}{}
	delete(a.removed, key)
}

// OnRemove implements the store hook.
func (a *SyncAdapter) OnRemove(key record.Key, _ *record.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed[key] = struct{}{}
	delete(a.dirty, key)
}

// OnClear implements the store hook.
func (a *SyncAdapter) OnClear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleared = true
	a.dirty = make(map[record.Key]struct{})
	a.removed = make(map[record.Key]struct{})
}

// MarkClean forgets all pending changes without touching the index.
// Used after loading an index artifact that already reflects the
// store's contents.
func (a *SyncAdapter) MarkClean() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleared = false
	a.dirty = make(map[record.Key]struct{})
	a.removed = make(map[record.Key]struct{})
}

// Dirty returns the keys awaiting synchronization, sorted.
func (a *SyncAdapter) Dirty() []record.Key {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]record.Key, 0, len(a.dirty))
	for k := range a.dirty {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Sync drains the dirty and removed sets into the index. Keys whose
// records failed to embed or upsert are re-marked dirty so the next
// Sync retries them.
func (a *SyncAdapter) Sync(ctx context.Context) error {
	a.mu.Lock()
	cleared := a.cleared
	a.cleared = false
	dirty := a.dirty
	removed := a.removed
	a.dirty = make(map[record.Key]struct{})
	a.removed = make(map[record.Key]struct{})
	a.mu.Unlock()

	if cleared {
		if err := a.index.Reset(); err != nil {
			a.restore(true, dirty, removed)
			return err
		}
	}

	if len(removed) > 0 {
		keys := make([]record.Key, 0, len(removed))
		for k := range removed {
			keys = append(keys, k)
		}
		if err := a.index.Delete(ctx, keys); err != nil {
			a.restore(false, dirty, removed)
			return err
		}
	}

	keys := make([]record.Key, 0, len(dirty))
	for k := range dirty {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for start := 0; start < len(keys); start += a.batchSize {
		end := start + a.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := a.syncBatch(ctx, keys[start:end]); err != nil {
			pending := make(map[record.Key]struct{})
			for _, k := range keys[start:] {
				pending[k] = struct{}{}
			}
			a.restore(false, pending, nil)
			return err
		}
	}

	logging.Ctx(ctx).Debug().
		Int("upserted", len(keys)).
		Int("deleted", len(removed)).
		Msg("vector index synced")
	return nil
}

func (a *SyncAdapter) syncBatch(ctx context.Context, batch []record.Key) error {
	keys := make([]record.Key, 0, len(batch))
	texts := make([]string, 0, len(batch))
	for _, k := range batch {
		rec, ok := a.source.Get(k)
		if !ok {
			// Removed since it was marked dirty.
			continue
		}
		text, err := a.embedText(rec)
		if err != nil {
			return err
		}
		keys = append(keys, k)
		texts = append(texts, text)
	}
	if len(keys) == 0 {
		return nil
	}

	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(keys) {
		return errors.NewValidationError("embeddings", len(vectors),
			"embedder returned a vector count that does not match the input")
	}
	return a.index.Upsert(ctx, keys, vectors)
}

// restore puts drained state back so the next Sync retries it.
func (a *SyncAdapter) restore(cleared bool, dirty, removed map[record.Key]struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cleared {
		a.cleared = true
	}
	for k := range dirty {
		a.dirty[k] = struct{}{}
	}
	for k := range removed {
		a.removed[k] = struct{}{}
	}
}

// BuildIndex synchronizes the index with the store. With force set the
// index is rebuilt from scratch: every entry is dropped, every stored
// record re-embedded. Without force only pending changes are applied.
func (a *SyncAdapter) BuildIndex(ctx context.Context, force bool) error {
	if force {
		a.mu.Lock()
		a.cleared = true
		a.dirty = make(map[record.Key]struct{})
		a.removed = make(map[record.Key]struct{})
		for _, k := range a.source.Keys() {
			a.dirty[k] = struct{}{}
		}
		a.mu.Unlock()
	}
	return a.Sync(ctx)
}

// Search embeds the query, runs a similarity search, and resolves the
// matches back to stored records. Matches whose records were removed
// after the last sync are skipped.
func (a *SyncAdapter) Search(ctx context.Context, query string, k int) ([]*record.Record, error) {
	if k <= 0 {
		return nil, errors.NewValidationError("k", k, "result count must be positive")
	}

	vectors, err := a.embedder.Embed(ctx, []string{norm.NFC.String(query)})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errors.NewValidationError("embeddings", len(vectors),
			"embedder returned a vector count that does not match the input")
	}

	matches, err := a.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, err
	}

	out := make([]*record.Record, 0, len(matches))
	for _, m := range matches {
		if rec, ok := a.source.Get(m.Key); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Persist writes the index to path.
func (a *SyncAdapter) Persist(path string) error {
	return a.index.Persist(path)
}

// Load replaces the index contents from path.
func (a *SyncAdapter) Load(path string) error {
	return a.index.Load(path)
}

// embedText renders a record as the text to embed, NFC-normalized so
// visually identical strings embed identically.
func (a *SyncAdapter) embedText(rec *record.Record) (string, error) {
	if len(a.fields) == 0 {
		text, err := rec.JSON()
		if err != nil {
			return "", err
		}
		return norm.NFC.String(text), nil
	}

	var b strings.Builder
	for _, name := range a.fields {
		value, ok := rec.Get(name)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(renderValue(value))
	}
	return norm.NFC.String(b.String()), nil
}

func renderValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	default:
		return fmt.Sprint(v)
	}
}
