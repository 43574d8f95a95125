package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"casebrief-backend/models"
)

// MemoryIndex is a brute-force cosine vector index held in process memory.
// It backs tests and small local corpora.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []models.IndexedVector
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add appends the entries. Vectors are copied.
func (m *MemoryIndex) Add(_ context.Context, entries ...models.IndexedVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("chunk %s has an empty embedding", e.ID)
		}
		if len(m.entries) > 0 && len(e.Vector) != len(m.entries[0].Vector) {
			return fmt.Errorf("embedding must be %d dimensions, got %d", len(m.entries[0].Vector), len(e.Vector))
		}
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		e.Vector = vec
		m.entries = append(m.entries, e)
	}
	return nil
}

// Query returns the n nearest entries by cosine distance. Ties keep insertion order.
func (m *MemoryIndex) Query(_ context.Context, vector []float32, n int) ([]models.IndexHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || len(m.entries) == 0 {
		return nil, nil
	}

	hits := make([]models.IndexHit, 0, len(m.entries))
	for _, e := range m.entries {
		if len(e.Vector) != len(vector) {
			return nil, fmt.Errorf("embedding must be %d dimensions, got %d", len(e.Vector), len(vector))
		}
		hits = append(hits, models.IndexHit{
			ID:       e.ID,
			Document: e.Document,
			Metadata: e.Metadata,
			Distance: 1 - cosine(vector, e.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if n < len(hits) {
		hits = hits[:n]
	}
	return hits, nil
}

// Count returns the number of stored entries
func (m *MemoryIndex) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Clear removes every entry
func (m *MemoryIndex) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

// DeleteBySource removes the entries ingested from one case file
func (m *MemoryIndex) DeleteBySource(_ context.Context, sourceFile string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var removed int64
	for _, e := range m.entries {
		if e.Metadata.SourceFile == sourceFile {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
