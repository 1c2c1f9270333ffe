package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nexusgraph/nexus/nexuserr"
)

// MockStore is an in-memory Store for testing. Search uses exact cosine
// similarity over the stored vectors.
type MockStore struct {
	mu          sync.RWMutex
	collections map[string]*mockCollection
	forcedErr   error
}

type mockCollection struct {
	dimension int
	points    map[string]mockPoint
}

type mockPoint struct {
	vec     []float32
	payload map[string]any
}

// NewMockStore creates an empty in-memory vector store.
func NewMockStore() *MockStore {
	return &MockStore{collections: make(map[string]*mockCollection)}
}

// Fail makes every subsequent operation return err. Pass nil to clear.
func (m *MockStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedErr = err
}

// EnsureCollection creates the collection if missing.
func (m *MockStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forcedErr != nil {
		return m.forcedErr
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = &mockCollection{
			dimension: dimension,
			points:    make(map[string]mockPoint),
		}
	}
	return nil
}

// Upsert stores or replaces the point under id.
func (m *MockStore) Upsert(ctx context.Context, collection, id string, vec []float32, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forcedErr != nil {
		return m.forcedErr
	}
	c, ok := m.collections[collection]
	if !ok {
		return nexuserr.NotFound("MockStore.Upsert",
			fmt.Errorf("collection %q does not exist", collection))
	}
	c.points[id] = mockPoint{vec: append([]float32(nil), vec...), payload: payload}
	return nil
}

// Search returns the nearest points by cosine similarity, best first.
func (m *MockStore) Search(ctx context.Context, collection string, vec []float32, limit int, threshold float32) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.forcedErr != nil {
		return nil, m.forcedErr
	}
	c, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}

	hits := make([]Hit, 0, len(c.points))
	for id, p := range c.points {
		score := cosine(vec, p.vec)
		if threshold > 0 && score < threshold {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Payload: p.payload})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes the point under id.
func (m *MockStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forcedErr != nil {
		return m.forcedErr
	}
	if c, ok := m.collections[collection]; ok {
		delete(c.points, id)
	}
	return nil
}

// Health always succeeds unless a forced error is set.
func (m *MockStore) Health(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forcedErr
}

// Close is a no-op for the in-memory store.
func (m *MockStore) Close() error {
	return nil
}

// Len returns the number of points in the collection.
func (m *MockStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		return len(c.points)
	}
	return 0
}

// Has reports whether the point exists in the collection.
func (m *MockStore) Has(collection, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		_, present := c.points[id]
		return present
	}
	return false
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ Store = (*MockStore)(nil)
