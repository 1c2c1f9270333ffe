package retrieval

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgraph/nexus/cache"
	"github.com/nexusgraph/nexus/embedding"
	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
	"github.com/nexusgraph/nexus/vector"
)

func fixedEmbedder() embedding.Func {
	return embedding.Func{
		Fn: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
		Dim: 3,
	}
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *graph.MockStore, *vector.MockStore) {
	t.Helper()
	store := graph.NewMockStore()
	vectors := vector.NewMockStore()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(store, vectors, fixedEmbedder(), opts)
	require.NoError(t, vectors.EnsureCollection(context.Background(), e.Collection(), 3))
	return e, store, vectors
}

func createNode(t *testing.T, store *graph.MockStore, label string, props map[string]any) *graph.Node {
	t.Helper()
	node, err := store.CreateNode(context.Background(), label, props)
	require.NoError(t, err)
	return node
}

func relate(t *testing.T, store *graph.MockStore, fromLabel, fromID, relType, toLabel, toID string) {
	t.Helper()
	err := store.CreateRelationship(context.Background(), graph.RelationshipSpec{
		FromLabel: fromLabel,
		ToLabel:   toLabel,
		Type:      relType,
		FromMatch: map[string]any{"id": fromID},
		ToMatch:   map[string]any{"id": toID},
	})
	require.NoError(t, err)
}

// messageFixture stores a Message node, indexes it as a document, and hangs
// a person and an open task off it.
func messageFixture(t *testing.T, e *Engine, store *graph.MockStore, vectors *vector.MockStore) (message, person, task *graph.Node) {
	ctx := context.Background()
	message = createNode(t, store, schema.Message, map[string]any{"content": "lunch with Alice on Friday"})
	person = createNode(t, store, schema.Person, map[string]any{"name": "Alice Smith"})
	task = createNode(t, store, schema.Task, map[string]any{"title": "book table", "status": schema.TaskPending})
	relate(t, store, schema.Person, person.ID(), schema.MentionedIn, schema.Message, message.ID())
	relate(t, store, schema.Task, task.ID(), schema.RelatedTo, schema.Message, message.ID())

	require.NoError(t, vectors.Upsert(ctx, e.Collection(), message.ID(), []float32{1, 0, 0},
		map[string]any{"id": message.ID(), "text": "lunch with Alice on Friday", "type": "message"}))
	return message, person, task
}

func TestStoreDocument(t *testing.T) {
	e, _, vectors := newTestEngine(t, Options{})
	ctx := context.Background()

	id, err := e.StoreDocument(ctx, Document{Text: "quarterly planning notes", Metadata: map[string]any{"source": "email"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.True(t, vectors.Has(e.Collection(), id))

	hits, err := e.SemanticSearch(ctx, "planning", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)
	assert.Equal(t, "email", hits[0].Payload["source"])
}

func TestStoreDocumentEmptyText(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})
	_, err := e.StoreDocument(context.Background(), Document{Text: "   "})
	require.Error(t, err)
	assert.Equal(t, nexuserr.KindValidation, nexuserr.Kind(err))
}

func TestStoreDocumentAnchorsGraphNode(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{})
	ctx := context.Background()
	person := createNode(t, store, schema.Person, map[string]any{"name": "Alice Smith"})

	id, err := e.StoreDocument(ctx, Document{
		Text:      "lunch with Alice on Friday",
		Label:     schema.Message,
		NodeProps: map[string]any{"content": "lunch with Alice on Friday"},
		Relationships: []graph.RelationshipSpec{{
			FromLabel: schema.Person,
			ToLabel:   schema.Message,
			Type:      schema.Authored,
			FromMatch: map[string]any{"id": person.ID()},
			ToMatch:   map[string]any{"content": "lunch with Alice on Friday"},
		}},
	})
	require.NoError(t, err)
	assert.True(t, vectors.Has(e.Collection(), id))

	node, err := store.GetNode(ctx, schema.Message, map[string]any{"id": id})
	require.NoError(t, err)
	assert.Equal(t, id, node.StringProp("embedding_id"))

	ok, err := store.RelationshipExists(ctx, person.ID(), schema.Authored, id)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := e.HybridSearch(ctx, Query{Text: "lunch", MaxHops: 1})
	require.NoError(t, err)
	var ids []string
	for _, n := range res.Graph.Nodes {
		ids = append(ids, n.ID())
	}
	assert.Contains(t, ids, person.ID())
}

func TestStoreDocumentRelationshipsRequireLabel(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})
	_, err := e.StoreDocument(context.Background(), Document{
		Text:          "orphan edges",
		Relationships: []graph.RelationshipSpec{{Type: schema.Authored}},
	})
	require.Error(t, err)
	assert.Equal(t, nexuserr.KindValidation, nexuserr.Kind(err))
}

func TestHybridSearchWidensIntoGraph(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{})
	message, person, task := messageFixture(t, e, store, vectors)

	res, err := e.HybridSearch(context.Background(), Query{Text: "lunch plans", MaxHops: 1})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, message.ID(), res.Hits[0].ID)
	assert.False(t, res.FromCache)

	var ids []string
	for _, n := range res.Graph.Nodes {
		ids = append(ids, n.ID())
	}
	assert.Contains(t, ids, person.ID())
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, task.ID(), res.Tasks[0].ID())

	byNode := res.TasksByNode[message.ID()]
	require.Len(t, byNode, 1)
	assert.Equal(t, task.ID(), byNode[0].ID())
}

func TestHybridSearchEmptyHitsShortCircuit(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})

	res, err := e.HybridSearch(context.Background(), Query{Text: "nothing stored"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Empty(t, res.Graph.Nodes)
	assert.Zero(t, store.CallCount("TraverseFromNodes"), "no hits means no graph traffic")
	assert.Zero(t, store.CallCount("Expand"))
}

func TestHybridSearchServedFromCache(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{})
	messageFixture(t, e, store, vectors)
	ctx := context.Background()

	first, err := e.HybridSearch(ctx, Query{Text: "lunch plans", MaxHops: 1})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	traversals := store.CallCount("TraverseFromNodes")

	second, err := e.HybridSearch(ctx, Query{Text: "lunch plans", MaxHops: 1})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, traversals, store.CallCount("TraverseFromNodes"))

	// Different hop counts are distinct operations.
	_, err = e.HybridSearch(ctx, Query{Text: "lunch plans", MaxHops: 2})
	require.NoError(t, err)
	assert.Greater(t, store.CallCount("TraverseFromNodes"), traversals)
}

func TestHybridSearchCacheHitDoesNotMutateCachedResult(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{})
	messageFixture(t, e, store, vectors)
	ctx := context.Background()
	q := Query{Text: "lunch plans", MaxHops: 1}

	_, err := e.HybridSearch(ctx, q)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.HybridSearch(ctx, q)
			assert.NoError(t, err)
			assert.True(t, res.FromCache)
		}()
	}
	wg.Wait()

	cached, ok := e.memory.Get(opKey(q))
	require.True(t, ok)
	assert.False(t, cached.FromCache, "the stored value is never flagged")

	hit, err := e.HybridSearch(ctx, q)
	require.NoError(t, err)
	assert.NotSame(t, cached, hit, "hits are copies of the stored value")
}

func TestFlushInvalidatesCache(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{})
	messageFixture(t, e, store, vectors)
	ctx := context.Background()

	_, err := e.HybridSearch(ctx, Query{Text: "lunch plans"})
	require.NoError(t, err)
	e.Flush(ctx)

	res, err := e.HybridSearch(ctx, Query{Text: "lunch plans"})
	require.NoError(t, err)
	assert.False(t, res.FromCache, "flush forces recomputation")
}

func TestFlushOnRelationshipWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	tier := cache.NewRedisFromClient(client)

	inner := graph.NewMockStore()
	cached := graph.NewCachedStore(inner, graph.CachedStoreOptions{Redis: tier})
	vectors := vector.NewMockStore()
	e := NewEngine(cached, vectors, fixedEmbedder(), Options{
		Redis:  tier,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	cached.OnRelationshipWrite(e.Flush)
	ctx := context.Background()
	require.NoError(t, vectors.EnsureCollection(ctx, e.Collection(), 3))

	message := createNode(t, inner, schema.Message, map[string]any{"content": "standup notes"})
	task := createNode(t, inner, schema.Task, map[string]any{"title": "write summary", "status": schema.TaskPending})
	require.NoError(t, vectors.Upsert(ctx, e.Collection(), message.ID(), []float32{1, 0, 0},
		map[string]any{"id": message.ID()}))

	first, err := e.HybridSearch(ctx, Query{Text: "standup"})
	require.NoError(t, err)
	assert.Empty(t, first.Tasks)

	// A new edge through the cached store flushes the operation cache, so
	// the same query sees the new task.
	err = cached.CreateRelationship(ctx, graph.RelationshipSpec{
		FromLabel: schema.Task,
		ToLabel:   schema.Message,
		Type:      schema.RelatedTo,
		FromMatch: map[string]any{"id": task.ID()},
		ToMatch:   map[string]any{"id": message.ID()},
	})
	require.NoError(t, err)

	second, err := e.HybridSearch(ctx, Query{Text: "standup"})
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	require.Len(t, second.Tasks, 1)
	assert.Equal(t, task.ID(), second.Tasks[0].ID())
}

func TestHybridSearchSharedRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	tier := cache.NewRedisFromClient(client)

	store := graph.NewMockStore()
	vectors := vector.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	first := NewEngine(store, vectors, fixedEmbedder(), Options{Redis: tier, Logger: logger})
	second := NewEngine(store, vectors, fixedEmbedder(), Options{Redis: tier, Logger: logger})
	ctx := context.Background()
	require.NoError(t, vectors.EnsureCollection(ctx, first.Collection(), 3))

	message := createNode(t, store, schema.Message, map[string]any{"content": "shared"})
	require.NoError(t, vectors.Upsert(ctx, first.Collection(), message.ID(), []float32{1, 0, 0},
		map[string]any{"id": message.ID()}))

	_, err := first.HybridSearch(ctx, Query{Text: "shared"})
	require.NoError(t, err)

	res, err := second.HybridSearch(ctx, Query{Text: "shared"})
	require.NoError(t, err)
	assert.True(t, res.FromCache, "the second process reads the first's cached result")
}

func TestHybridSearchPayloadFilters(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{})
	ctx := context.Background()
	m1 := createNode(t, store, schema.Message, map[string]any{"content": "email body"})
	m2 := createNode(t, store, schema.Message, map[string]any{"content": "chat line"})
	require.NoError(t, vectors.Upsert(ctx, e.Collection(), m1.ID(), []float32{1, 0, 0},
		map[string]any{"id": m1.ID(), "channel": "email"}))
	require.NoError(t, vectors.Upsert(ctx, e.Collection(), m2.ID(), []float32{1, 0, 0},
		map[string]any{"id": m2.ID(), "channel": "chat"}))

	res, err := e.HybridSearch(ctx, Query{Text: "anything", Filters: map[string]string{"channel": "email"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, m1.ID(), res.Hits[0].ID)
}

func TestRetrieveWithContext(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{})
	message, person, task := messageFixture(t, e, store, vectors)

	out, err := e.RetrieveWithContext(context.Background(), Query{Text: "lunch plans", MaxHops: 1})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	doc := out.Results[0]
	assert.Equal(t, message.ID(), doc.Document["id"])
	assert.InDelta(t, 1.0, float64(doc.Score), 1e-6)

	var connected []string
	for _, conn := range doc.Connections {
		connected = append(connected, conn.NodeID)
		if conn.NodeID == person.ID() {
			assert.Equal(t, schema.Person, conn.Label)
			assert.Equal(t, "Alice Smith", conn.Name)
			assert.Equal(t, schema.MentionedIn, conn.Type)
		}
	}
	assert.Contains(t, connected, person.ID())

	assert.GreaterOrEqual(t, out.GraphSummary.TotalNodes, 2)
	assert.GreaterOrEqual(t, out.GraphSummary.TotalRelationships, 1)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, task.ID(), out.Tasks[0].ID())
}

func TestOpKeyDeterminism(t *testing.T) {
	a := opKey(Query{Text: "q", MaxHops: 1, Filters: map[string]string{"a": "1", "b": "2"}})
	b := opKey(Query{Text: "q", MaxHops: 1, Filters: map[string]string{"b": "2", "a": "1"}})
	assert.Equal(t, a, b, "filter order does not change the key")

	c := opKey(Query{Text: "q", MaxHops: 2, Filters: map[string]string{"a": "1", "b": "2"}})
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, opKeyPrefix)

	d := opKey(Query{Text: "other", MaxHops: 1})
	assert.NotEqual(t, a, d)
}

func TestHybridSearchCacheExpiry(t *testing.T) {
	e, store, vectors := newTestEngine(t, Options{CacheTTL: 20 * time.Millisecond})
	messageFixture(t, e, store, vectors)
	ctx := context.Background()

	_, err := e.HybridSearch(ctx, Query{Text: "lunch plans"})
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	res, err := e.HybridSearch(ctx, Query{Text: "lunch plans"})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}
