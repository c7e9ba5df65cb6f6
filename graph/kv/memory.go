package kv

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. Safe for concurrent use; suitable for
// tests and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]map[string]Entry // namespaceKey -> key -> Entry
	embedder Embedder
}

// NewMemoryStore creates an empty in-memory store. embedder may be nil, in
// which case Search falls back to substring matching.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]map[string]Entry),
		embedder: embedder,
	}
}

func (m *MemoryStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns := namespaceKey(namespace)
	bucket, ok := m.entries[ns]
	if !ok {
		bucket = make(map[string]Entry)
		m.entries[ns] = bucket
	}

	now := time.Now()
	e := bucket[key]
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.NamespacePath = namespace
	e.Key = key
	e.Value = value
	e.UpdatedAt = now

	if m.embedder != nil {
		if text, ok := value["text"].(string); ok && text != "" {
			vec, err := m.embedder.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("embed value: %w", err)
			}
			e.Embedding = vec
		}
	}

	bucket[key] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, namespace []string, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket, ok := m.entries[namespaceKey(namespace)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	e, ok := bucket[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) Delete(_ context.Context, namespace []string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.entries[namespaceKey(namespace)]
	if !ok {
		return nil
	}
	delete(bucket, key)
	return nil
}

func (m *MemoryStore) List(_ context.Context, namespace []string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket := m.entries[namespaceKey(namespace)]
	out := make([]Entry, 0, len(bucket))
	for _, e := range bucket {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Search(ctx context.Context, namespace []string, query string, k int) ([]Entry, error) {
	m.mu.RLock()
	bucket := m.entries[namespaceKey(namespace)]
	all := make([]Entry, 0, len(bucket))
	for _, e := range bucket {
		all = append(all, e)
	}
	m.mu.RUnlock()

	if m.embedder != nil {
		qvec, err := m.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		sort.Slice(all, func(i, j int) bool {
			return cosineSimilarity(qvec, all[i].Embedding) > cosineSimilarity(qvec, all[j].Embedding)
		})
	} else {
		q := strings.ToLower(query)
		filtered := all[:0]
		for _, e := range all {
			if strings.Contains(strings.ToLower(fmt.Sprint(e.Value)), q) {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}

	if k > 0 && len(all) > k {
		all = all[:k]
	}
	return all, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
