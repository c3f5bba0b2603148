package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force in-memory backend. It serves local
// development and tests where no Atlas cluster is available.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		if len(e.Vector) == 0 {
			continue
		}
		if filter != nil && !matchesFilter(e.Metadata, filter) {
			continue
		}
		results = append(results, Result{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: e.Metadata,
			Distance: 1 - cosineSimilarity(vector, e.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) Get(ctx context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryIndex) List(ctx context.Context, filter Filter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []Entry
	for _, e := range m.entries {
		if filter != nil && !matchesFilter(e.Metadata, filter) {
			continue
		}
		entries = append(entries, Entry{ID: e.ID, Text: e.Text, Metadata: e.Metadata})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, e := range m.entries {
		if filter != nil && !matchesFilter(e.Metadata, filter) {
			continue
		}
		delete(m.entries, id)
		deleted++
	}
	return deleted, nil
}

func (m *MemoryIndex) Count(ctx context.Context, filter Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, e := range m.entries {
		if filter != nil && !matchesFilter(e.Metadata, filter) {
			continue
		}
		count++
	}
	return count, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
