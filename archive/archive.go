// Package archive moves aged graph nodes into cold storage, keeping a
// lightweight stub in the graph that can be rehydrated on access.
package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nexusgraph/nexus/cache"
	"github.com/nexusgraph/nexus/nexuserr"
)

// ColdStorage holds the full property payload of archived nodes. Store
// returns an opaque reference the graph stub keeps; Retrieve resolves it.
type ColdStorage interface {
	Store(ctx context.Context, nodeID string, data map[string]any) (string, error)
	Retrieve(ctx context.Context, reference string) (map[string]any, error)
}

// MemoryColdStorage is an in-process ColdStorage, for tests and
// single-node deployments.
type MemoryColdStorage struct {
	mu   sync.RWMutex
	data map[string]map[string]any
}

// NewMemoryColdStorage creates an empty in-process cold store.
func NewMemoryColdStorage() *MemoryColdStorage {
	return &MemoryColdStorage{data: make(map[string]map[string]any)}
}

// Store copies the payload and returns a fresh reference.
func (m *MemoryColdStorage) Store(ctx context.Context, nodeID string, data map[string]any) (string, error) {
	ref := uuid.New().String()
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	m.mu.Lock()
	m.data[ref] = copied
	m.mu.Unlock()
	return ref, nil
}

// Retrieve resolves a reference, or returns a not_found error.
func (m *MemoryColdStorage) Retrieve(ctx context.Context, reference string) (map[string]any, error) {
	m.mu.RLock()
	data, ok := m.data[reference]
	m.mu.RUnlock()
	if !ok {
		return nil, nexuserr.NotFound("MemoryColdStorage.Retrieve",
			fmt.Errorf("archive reference %q not found", reference))
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out, nil
}

// Len returns the number of archived payloads.
func (m *MemoryColdStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

const redisArchivePrefix = "archive:"

// RedisColdStorage keeps archived payloads in Redis without expiry.
type RedisColdStorage struct {
	redis *cache.Redis
}

// NewRedisColdStorage creates a cold store over the given Redis tier.
func NewRedisColdStorage(redis *cache.Redis) *RedisColdStorage {
	return &RedisColdStorage{redis: redis}
}

// Store writes the payload under a fresh reference key with no TTL.
func (r *RedisColdStorage) Store(ctx context.Context, nodeID string, data map[string]any) (string, error) {
	ref := redisArchivePrefix + nodeID + ":" + uuid.New().String()
	if err := r.redis.Set(ctx, ref, data, 0); err != nil {
		return "", nexuserr.Unavailable("RedisColdStorage.Store", err)
	}
	return ref, nil
}

// Retrieve resolves a reference, or returns a not_found error.
func (r *RedisColdStorage) Retrieve(ctx context.Context, reference string) (map[string]any, error) {
	var data map[string]any
	found, err := r.redis.Get(ctx, reference, &data)
	if err != nil {
		return nil, nexuserr.Unavailable("RedisColdStorage.Retrieve", err)
	}
	if !found {
		return nil, nexuserr.NotFound("RedisColdStorage.Retrieve",
			fmt.Errorf("archive reference %q not found", reference))
	}
	return data, nil
}

var (
	_ ColdStorage = (*MemoryColdStorage)(nil)
	_ ColdStorage = (*RedisColdStorage)(nil)
)
