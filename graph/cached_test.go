package graph

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgraph/nexus/cache"
	"github.com/nexusgraph/nexus/schema"
)

func newCachedStore(t *testing.T) (*CachedStore, *MockStore) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := NewMockStore()
	cached := NewCachedStore(inner, CachedStoreOptions{
		MemorySize: 100,
		MemoryTTL:  time.Minute,
		Redis:      cache.NewRedisFromClient(client),
		RedisTTL:   time.Hour,
	})
	return cached, inner
}

func TestCachedStoreGetNodeHitsCache(t *testing.T) {
	cached, inner := newCachedStore(t)
	ctx := context.Background()

	_, err := cached.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alice"})
	require.NoError(t, err)

	before := inner.CallCount("GetNode")
	for i := 0; i < 3; i++ {
		node, err := cached.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
		require.NoError(t, err)
		assert.Equal(t, "Alice", node.StringProp("name"))
	}
	assert.Equal(t, before, inner.CallCount("GetNode"), "id lookups served from cache")
}

func TestCachedStoreNonIDLookupBypassesCache(t *testing.T) {
	cached, inner := newCachedStore(t)
	ctx := context.Background()

	_, err := cached.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "email": "a@example.com"})
	require.NoError(t, err)

	_, err = cached.GetNode(ctx, schema.Person, map[string]any{"email": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.CallCount("GetNode"))
}

func TestCachedStoreReadAfterWrite(t *testing.T) {
	cached, _ := newCachedStore(t)
	ctx := context.Background()

	_, err := cached.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alice"})
	require.NoError(t, err)

	// warm the cache
	_, err = cached.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	require.NoError(t, err)

	_, err = cached.UpdateNode(ctx, schema.Person,
		map[string]any{"id": "p1"}, map[string]any{"name": "Alice Smith"})
	require.NoError(t, err)

	node, err := cached.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", node.StringProp("name"),
		"a read after a write never returns the pre-write value")
}

func TestCachedStoreMergeNodeInvalidates(t *testing.T) {
	cached, _ := newCachedStore(t)
	ctx := context.Background()

	_, err := cached.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alice"})
	require.NoError(t, err)
	_, err = cached.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	require.NoError(t, err)

	_, err = cached.MergeNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alicia"})
	require.NoError(t, err)

	node, err := cached.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", node.StringProp("name"))
}

func TestCachedStoreDeleteNodeInvalidates(t *testing.T) {
	cached, _ := newCachedStore(t)
	ctx := context.Background()

	_, err := cached.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alice"})
	require.NoError(t, err)
	_, err = cached.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	require.NoError(t, err)

	require.NoError(t, cached.DeleteNode(ctx, schema.Person, map[string]any{"id": "p1"}))

	_, err = cached.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	assert.Error(t, err)
}

func TestCachedStoreRelationshipWriteFlushesOps(t *testing.T) {
	cached, _ := newCachedStore(t)
	ctx := context.Background()

	flushed := 0
	cached.OnRelationshipWrite(func(ctx context.Context) { flushed++ })

	_, err := cached.CreateNode(ctx, schema.Task, map[string]any{"id": "t1", "title": "x"})
	require.NoError(t, err)
	_, err = cached.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alice"})
	require.NoError(t, err)
	assert.Zero(t, flushed, "node writes do not flush the operation cache")

	err = cached.MergeRelationship(ctx, RelationshipSpec{
		FromLabel: schema.Task,
		ToLabel:   schema.Person,
		Type:      schema.AssignedTo,
		FromMatch: map[string]any{"id": "t1"},
		ToMatch:   map[string]any{"id": "p1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	require.NoError(t, cached.DeleteRelationship(ctx, "t1", schema.AssignedTo, "p1"))
	assert.Equal(t, 2, flushed)
}

func TestCachedStoreSharedRedisTier(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	tier := cache.NewRedisFromClient(client)

	inner := NewMockStore()
	first := NewCachedStore(inner, CachedStoreOptions{Redis: tier})
	second := NewCachedStore(inner, CachedStoreOptions{Redis: tier})

	ctx := context.Background()
	_, err := first.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alice"})
	require.NoError(t, err)

	before := inner.CallCount("GetNode")
	node, err := second.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", node.StringProp("name"))
	assert.Equal(t, before, inner.CallCount("GetNode"),
		"second instance reads the shared tier, not the store")
}

func TestCachedStoreTouchInvalidates(t *testing.T) {
	cached, _ := newCachedStore(t)
	ctx := context.Background()

	_, err := cached.CreateNode(ctx, schema.Message, map[string]any{"id": "m1", "content": "hi"})
	require.NoError(t, err)
	_, err = cached.GetNode(ctx, schema.Message, map[string]any{"id": "m1"})
	require.NoError(t, err)

	require.NoError(t, cached.Touch(ctx, "m1"))

	node, err := cached.GetNode(ctx, schema.Message, map[string]any{"id": "m1"})
	require.NoError(t, err)
	assert.Equal(t, 1, node.IntProp("access_count"))
}
