package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
)

func TestMergePropertiesNewerWins(t *testing.T) {
	source := &graph.Node{Label: schema.Person, Props: map[string]any{
		"id":          "s",
		"name":        "R. Smith",
		"description": "knows the widget line",
		"confidence":  0.9,
		"created_at":  "2026-02-01T00:00:00Z",
		"merged":      false,
	}}
	target := &graph.Node{Label: schema.Person, Props: map[string]any{
		"id":         "t",
		"name":       "Robert Smith",
		"confidence": 0.6,
		"created_at": "2026-01-01T00:00:00Z",
	}}

	update := mergeProperties(source, target, NewerWins)

	assert.NotContains(t, update, "id")
	assert.NotContains(t, update, "merged")
	assert.NotContains(t, update, "name", "target's non-empty name is kept")
	assert.Equal(t, "knows the widget line", update["description"], "gaps fill from source")
	assert.Equal(t, 0.9, update["confidence"], "confidence takes the max")
	assert.Equal(t, "2026-02-01T00:00:00Z", update["created_at"], "timestamps keep the later value")
	assert.Equal(t, 1, update["merged_count"])
	assert.NotEmpty(t, update["updated_at"])
}

func TestMergePropertiesSourceWins(t *testing.T) {
	source := &graph.Node{Label: schema.Person, Props: map[string]any{
		"id": "s", "name": "New Name", "email": "",
	}}
	target := &graph.Node{Label: schema.Person, Props: map[string]any{
		"id": "t", "name": "Old Name", "email": "keep@example.com", "merged_count": 2,
	}}

	update := mergeProperties(source, target, SourceWins)
	assert.Equal(t, "New Name", update["name"])
	assert.Equal(t, "", update["email"], "the source value always wins, empty included")
	assert.Equal(t, 3, update["merged_count"])
}

func TestMergePropertiesTargetWins(t *testing.T) {
	source := &graph.Node{Label: schema.Person, Props: map[string]any{
		"id": "s", "name": "Other Name", "phone": "15550102030",
	}}
	target := &graph.Node{Label: schema.Person, Props: map[string]any{
		"id": "t", "name": "Kept Name", "phone": "",
	}}

	update := mergeProperties(source, target, TargetWins)
	assert.NotContains(t, update, "name")
	assert.Equal(t, "15550102030", update["phone"], "only gaps fill from source")
}

func TestMergeTransfersRelationshipsWithoutDuplicates(t *testing.T) {
	r, store, _ := newTestResolver(t)
	ctx := context.Background()

	source := createNode(t, store, schema.Person, map[string]any{"name": "R. Smith"})
	target := createNode(t, store, schema.Person, map[string]any{"name": "Robert Smith"})
	m1 := createNode(t, store, schema.Message, map[string]any{"content": "standup"})
	m2 := createNode(t, store, schema.Message, map[string]any{"content": "retro"})
	relate(t, store, schema.Person, source.ID(), schema.MentionedIn, schema.Message, m1.ID())
	relate(t, store, schema.Person, source.ID(), schema.MentionedIn, schema.Message, m2.ID())
	relate(t, store, schema.Person, target.ID(), schema.MentionedIn, schema.Message, m2.ID())

	merged, err := r.Merge(ctx, schema.Person, source.ID(), target.ID(), NewerWins)
	require.NoError(t, err)
	assert.Equal(t, target.ID(), merged.ID())
	assert.Equal(t, 1, merged.IntProp("merged_count"))

	neighbors, err := store.NeighborIDs(ctx, target.ID())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{m1.ID(), m2.ID()}, neighbors,
		"the m2 edge is not duplicated, the m1 edge is transferred")

	tombstone, err := store.GetNode(ctx, schema.Person, map[string]any{"id": source.ID()})
	require.NoError(t, err)
	assert.True(t, tombstone.IsMerged())
	assert.Equal(t, target.ID(), tombstone.StringProp("merged_into"))
	assert.NotZero(t, tombstone.TimeProp("merged_at"))
}

func TestMergePreservesIncomingDirection(t *testing.T) {
	r, store, _ := newTestResolver(t)
	ctx := context.Background()

	user := createNode(t, store, schema.User, map[string]any{"name": "Me"})
	source := createNode(t, store, schema.Person, map[string]any{"name": "R. Smith"})
	target := createNode(t, store, schema.Person, map[string]any{"name": "Robert Smith"})
	relate(t, store, schema.User, user.ID(), schema.UserKnows, schema.Person, source.ID())

	_, err := r.Merge(ctx, schema.Person, source.ID(), target.ID(), NewerWins)
	require.NoError(t, err)

	rels, err := store.IncidentRelationships(ctx, target.ID())
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, user.ID(), rels[0].SourceID, "the user stays on the source side of KNOWS")
	assert.Equal(t, target.ID(), rels[0].TargetID)
}

func TestMergeRefreshesEmbedding(t *testing.T) {
	r, store, vectors := newTestResolver(t)
	ctx := context.Background()

	source := createNode(t, store, schema.Person, map[string]any{"name": "R. Smith"})
	target := createNode(t, store, schema.Person, map[string]any{"name": "Robert Smith"})
	require.NoError(t, vectors.Upsert(ctx, EntityCollection(schema.Person), source.ID(),
		[]float32{1, 0, 0}, nil))

	_, err := r.Merge(ctx, schema.Person, source.ID(), target.ID(), NewerWins)
	require.NoError(t, err)

	assert.True(t, vectors.Has(EntityCollection(schema.Person), target.ID()))
	assert.False(t, vectors.Has(EntityCollection(schema.Person), source.ID()),
		"the absorbed node's vector is removed")
}

func TestMergeSelfRejected(t *testing.T) {
	r, store, _ := newTestResolver(t)
	node := createNode(t, store, schema.Person, map[string]any{"name": "Solo"})

	_, err := r.Merge(context.Background(), schema.Person, node.ID(), node.ID(), NewerWins)
	require.Error(t, err)
	assert.Equal(t, nexuserr.KindValidation, nexuserr.Kind(err))
}

func TestMergeMissingNode(t *testing.T) {
	r, store, _ := newTestResolver(t)
	node := createNode(t, store, schema.Person, map[string]any{"name": "Solo"})

	_, err := r.Merge(context.Background(), schema.Person, "nope", node.ID(), NewerWins)
	require.Error(t, err)
	assert.Equal(t, nexuserr.KindNotFound, nexuserr.Kind(err))
}

func TestMergeEndToEnd(t *testing.T) {
	r, store, _ := newTestResolver(t)
	ctx := context.Background()

	original := createNode(t, store, schema.Person, map[string]any{
		"name": "Alice Smith", "email": "alice@example.com",
	})
	duplicate := createNode(t, store, schema.Person, map[string]any{
		"name": "Alice Smith", "phone": "15550102030",
	})

	// An incoming record with her email resolves to the original.
	id, err := r.Resolve(ctx, schema.Person, Candidate{
		Props: map[string]any{"name": "Alice Smith", "email": "alice@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, original.ID(), id)

	merged, err := r.Merge(ctx, schema.Person, duplicate.ID(), original.ID(), NewerWins)
	require.NoError(t, err)
	assert.Equal(t, 1, merged.IntProp("merged_count"))
	assert.Equal(t, "15550102030", merged.StringProp("phone"), "the duplicate's phone fills the gap")

	// Matching on the duplicate's phone now lands on the survivor too.
	id, err = r.Resolve(ctx, schema.Person, Candidate{
		Props: map[string]any{"phone": "+1 555 010 2030"},
	})
	require.NoError(t, err)
	assert.Equal(t, original.ID(), id)

	// The later merge timestamp is honored if merged again.
	time.Sleep(time.Millisecond)
	_, err = r.Merge(ctx, schema.Person, duplicate.ID(), original.ID(), NewerWins)
	require.NoError(t, err)
	again, err := store.GetNode(ctx, schema.Person, map[string]any{"id": original.ID()})
	require.NoError(t, err)
	assert.Equal(t, 2, again.IntProp("merged_count"))
}
