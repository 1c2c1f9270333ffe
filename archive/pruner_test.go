package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
)

func newTestPruner(t *testing.T, opts PrunerOptions) (*Pruner, *graph.MockStore, *MemoryColdStorage) {
	t.Helper()
	store := graph.NewMockStore()
	cold := NewMemoryColdStorage()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPruner(store, cold, opts), store, cold
}

func createNode(t *testing.T, store *graph.MockStore, label string, props map[string]any) *graph.Node {
	t.Helper()
	node, err := store.CreateNode(context.Background(), label, props)
	require.NoError(t, err)
	return node
}

func stamp(age time.Duration) string {
	return time.Now().UTC().Add(-age).Format(time.RFC3339)
}

func TestRunPruningJobArchivesAgedMessages(t *testing.T) {
	p, store, cold := newTestPruner(t, PrunerOptions{})
	ctx := context.Background()

	old := createNode(t, store, schema.Message, map[string]any{
		"content": "the secret plans", "timestamp": stamp(100 * day),
	})
	fresh := createNode(t, store, schema.Message, map[string]any{
		"content": "recent chatter", "timestamp": stamp(5 * day),
	})

	stats, err := p.RunPruningJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Archived)
	assert.Equal(t, 1, stats.PerLabel[schema.Message])
	assert.Equal(t, 1, cold.Len())
	assert.False(t, p.LastRun().IsZero())

	stub, err := store.GetNode(ctx, schema.Message, map[string]any{"id": old.ID()})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusArchived, stub.StringProp("status"))
	assert.Empty(t, stub.StringProp("content"), "message content is stripped from the stub")
	assert.True(t, stub.BoolProp("has_archived_content"))
	assert.NotEmpty(t, stub.StringProp("archive_reference"))
	assert.NotZero(t, stub.TimeProp("archived_at"))

	kept, err := store.GetNode(ctx, schema.Message, map[string]any{"id": fresh.ID()})
	require.NoError(t, err)
	assert.Equal(t, "recent chatter", kept.StringProp("content"))
}

func TestRunPruningJobIdempotent(t *testing.T) {
	p, store, _ := newTestPruner(t, PrunerOptions{})
	createNode(t, store, schema.Message, map[string]any{
		"content": "stale", "timestamp": stamp(100 * day),
	})

	first, err := p.RunPruningJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Archived)

	second, err := p.RunPruningJob(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Archived, "archived stubs are not archived again")
}

func TestRunPruningJobRejectsOverlap(t *testing.T) {
	p, _, _ := newTestPruner(t, PrunerOptions{})
	p.running.Store(true)
	defer p.running.Store(false)

	_, err := p.RunPruningJob(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, nexuserr.ErrPruningInProgress))
	assert.Equal(t, nexuserr.KindUnavailable, nexuserr.Kind(err))
}

func TestRunPruningJobPerLabelPolicies(t *testing.T) {
	p, store, _ := newTestPruner(t, PrunerOptions{})
	createNode(t, store, schema.Task, map[string]any{
		"title": "ancient", "created_date": stamp(70 * day),
	})
	createNode(t, store, schema.Person, map[string]any{
		"name": "Old Friend", "last_contact_date": stamp(200 * day),
	})
	createNode(t, store, schema.Person, map[string]any{
		"name": "Recent Friend", "last_contact_date": stamp(30 * day),
	})

	stats, err := p.RunPruningJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PerLabel[schema.Task])
	assert.Equal(t, 1, stats.PerLabel[schema.Person])
	assert.Equal(t, 2, stats.Archived)
}

func TestRunPruningJobBatchLimit(t *testing.T) {
	p, store, _ := newTestPruner(t, PrunerOptions{BatchSize: 2})
	for _, content := range []string{"a", "b", "c"} {
		createNode(t, store, schema.Message, map[string]any{
			"content": content, "timestamp": stamp(120 * day),
		})
	}

	stats, err := p.RunPruningJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Archived, "a run archives at most one batch per label")

	stats, err = p.RunPruningJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Archived, "the next run picks up the remainder")
}

func TestGetNodeWithArchiveRehydrates(t *testing.T) {
	p, store, _ := newTestPruner(t, PrunerOptions{})
	ctx := context.Background()

	msg := createNode(t, store, schema.Message, map[string]any{
		"content": "the secret plans", "timestamp": stamp(100 * day),
	})
	_, err := p.RunPruningJob(ctx)
	require.NoError(t, err)

	restored, err := p.GetNodeWithArchive(ctx, schema.Message, msg.ID())
	require.NoError(t, err)
	assert.Equal(t, "the secret plans", restored.StringProp("content"))
	assert.Equal(t, schema.StatusArchived, restored.StringProp("status"),
		"rehydration does not unarchive the stub")

	stub, err := store.GetNode(ctx, schema.Message, map[string]any{"id": msg.ID()})
	require.NoError(t, err)
	assert.Empty(t, stub.StringProp("content"), "the stored stub stays stripped")
	assert.Equal(t, 1, stub.IntProp("access_count"), "the access is recorded")
}

func TestGetNodeWithArchivePlainNode(t *testing.T) {
	p, store, _ := newTestPruner(t, PrunerOptions{})
	msg := createNode(t, store, schema.Message, map[string]any{"content": "live"})

	node, err := p.GetNodeWithArchive(context.Background(), schema.Message, msg.ID())
	require.NoError(t, err)
	assert.Equal(t, "live", node.StringProp("content"))
}

func TestColdStorageRoundTrip(t *testing.T) {
	cold := NewMemoryColdStorage()
	ctx := context.Background()

	ref, err := cold.Store(ctx, "n1", map[string]any{"content": "payload"})
	require.NoError(t, err)
	data, err := cold.Retrieve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "payload", data["content"])

	_, err = cold.Retrieve(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, nexuserr.KindNotFound, nexuserr.Kind(err))
}
