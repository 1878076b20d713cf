// Package vector keeps an external similarity index synchronized with
// an entity store. The adapter tracks which entries changed through
// store hooks and pushes embeddings in batches, so golden records stay
// searchable by meaning without re-embedding the whole store on every
// mutation.
package vector

import (
	"context"

	"github.com/agentstation/goldrec/pkg/record"
)

// Match is one similarity hit: the primary key of a stored record and
// its score, higher meaning closer.
type Match struct {
	Key   record.Key
	Score float32
}

// Embedder turns texts into dense vectors. Implementations typically
// wrap a remote embedding API and should honor ctx cancellation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// Index is the similarity index the adapter writes to. Implementations
// own their persistence format; Persist and Load treat path as opaque.
type Index interface {
	// Upsert inserts or replaces vectors for the given keys. Both
	// slices have equal length.
	Upsert(ctx context.Context, keys []record.Key, vectors [][]float32) error

	// Delete removes keys from the index. Unknown keys are ignored.
	Delete(ctx context.Context, keys []record.Key) error

	// Search returns the k nearest entries to the query vector,
	// ordered by descending score.
	Search(ctx context.Context, query []float32, k int) ([]Match, error)

	// Reset drops every entry.
	Reset() error

	// Persist writes the index to path.
	Persist(path string) error

	// Load replaces the index contents from path.
	Load(path string) error
}

// Source is the read side of the store the adapter syncs from.
type Source interface {
	Get(key record.Key) (*record.Record, bool)
	Keys() []record.Key
}
