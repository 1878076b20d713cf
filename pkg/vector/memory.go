package vector

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/record"
)

// MemoryIndex is an exhaustive in-memory similarity index using cosine
// similarity. It is exact and needs no tuning, which makes it the
// right default below a few hundred thousand entries; larger stores
// should plug in an approximate index behind the same interface.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[record.Key][]float32
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[record.Key][]float32)}
}

// Upsert implements Index.
func (m *MemoryIndex) Upsert(_ context.Context, keys []record.Key, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return errors.NewValidationError("vectors", len(vectors),
			"key and vector counts differ")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, k := range keys {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])
		m.vectors[k] = v
	}
	return nil
}

// Delete implements Index.
func (m *MemoryIndex) Delete(_ context.Context, keys []record.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.vectors, k)
	}
	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, errors.NewValidationError("k", k, "result count must be positive")
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.vectors))
	for key, v := range m.vectors {
		matches = append(matches, Match{Key: key, Score: cosine(query, v)})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Key < matches[j].Key
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Reset implements Index.
func (m *MemoryIndex) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = make(map[record.Key][]float32)
	return nil
}

// Size returns the number of indexed entries.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Persist implements Index. The artifact is a JSON object mapping
// primary keys to vectors.
func (m *MemoryIndex) Persist(path string) error {
	m.mu.RLock()
	snapshot := make(map[string][]float32, len(m.vectors))
	for k, v := range m.vectors {
		snapshot[string(k)] = v
	}
	m.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.WrapParse("json", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// Load implements Index.
func (m *MemoryIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapIO("read", path, err)
	}

	var snapshot map[string][]float32
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return errors.WrapParse("json", path, err)
	}

	vectors := make(map[record.Key][]float32, len(snapshot))
	for k, v := range snapshot {
		vectors[record.Key(k)] = v
	}

	m.mu.Lock()
	m.vectors = vectors
	m.mu.Unlock()
	return nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
