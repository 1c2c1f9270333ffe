package traverse

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/schema"
)

func newTestEngine(t *testing.T) (*Engine, *graph.MockStore) {
	t.Helper()
	store := graph.NewMockStore()
	return NewEngine(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
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

func resultIDs(res *Result) []string {
	ids := make([]string, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		ids = append(ids, n.ID())
	}
	return ids
}

// chainFixture builds user -KNOWS-> person -MENTIONED_IN-> message with a
// task extracted from the message.
func chainFixture(t *testing.T, store *graph.MockStore) (user, person, message, task *graph.Node) {
	user = createNode(t, store, schema.User, map[string]any{"name": "Me"})
	person = createNode(t, store, schema.Person, map[string]any{"name": "Alice"})
	message = createNode(t, store, schema.Message, map[string]any{"content": "ping"})
	task = createNode(t, store, schema.Task, map[string]any{"title": "reply", "status": schema.TaskPending})
	relate(t, store, schema.User, user.ID(), schema.UserKnows, schema.Person, person.ID())
	relate(t, store, schema.Person, person.ID(), schema.MentionedIn, schema.Message, message.ID())
	relate(t, store, schema.Task, task.ID(), schema.ExtractedFrom, schema.Message, message.ID())
	return user, person, message, task
}

func TestFromSeedsZeroHopsReturnsSeedsAndNeighbors(t *testing.T) {
	e, store := newTestEngine(t)
	user, person, message, task := chainFixture(t, store)

	res, err := e.FromSeeds(context.Background(), []string{person.ID()}, Options{MaxHops: 0})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{person.ID(), user.ID(), message.ID()}, resultIDs(res))
	assert.NotContains(t, resultIDs(res), task.ID(), "neighbors are not expanded further")
	assert.Equal(t, 0, res.Hops[person.ID()])
	assert.Equal(t, 1, res.Hops[user.ID()])
	assert.Len(t, res.Relationships, 2)
}

func TestFromSeedsReachesSecondRing(t *testing.T) {
	e, store := newTestEngine(t)
	_, person, message, task := chainFixture(t, store)

	res, err := e.FromSeeds(context.Background(), []string{person.ID()}, Options{MaxHops: 1})
	require.NoError(t, err)

	assert.Contains(t, resultIDs(res), task.ID())
	assert.Equal(t, 2, res.Hops[task.ID()])
	assert.Equal(t, 1, res.Hops[message.ID()])
}

func TestFromSeedsTerminatesOnCycles(t *testing.T) {
	e, store := newTestEngine(t)
	a := createNode(t, store, schema.Person, map[string]any{"name": "A"})
	b := createNode(t, store, schema.Person, map[string]any{"name": "B"})
	relate(t, store, schema.Person, a.ID(), schema.ConnectedTo, schema.Person, b.ID())
	relate(t, store, schema.Person, b.ID(), schema.ConnectedTo, schema.Person, a.ID())

	res, err := e.FromSeeds(context.Background(), []string{a.ID()}, Options{MaxHops: 10})
	require.NoError(t, err)
	assert.Len(t, res.Nodes, 2)
	assert.Len(t, res.Relationships, 2)
}

func TestFromSeedsNodeBudgetAccumulates(t *testing.T) {
	e, store := newTestEngine(t)
	person := createNode(t, store, schema.Person, map[string]any{"name": "Hub"})
	for _, content := range []string{"one", "two", "three"} {
		m := createNode(t, store, schema.Message, map[string]any{"content": content})
		relate(t, store, schema.Person, person.ID(), schema.MentionedIn, schema.Message, m.ID())
		for i := 0; i < 2; i++ {
			task := createNode(t, store, schema.Task, map[string]any{"title": content, "status": schema.TaskPending})
			relate(t, store, schema.Task, task.ID(), schema.ExtractedFrom, schema.Message, m.ID())
		}
	}

	// The budget spans hops: three messages exhaust it, so none of the six
	// tasks behind them is discovered.
	res, err := e.FromSeeds(context.Background(), []string{person.ID()},
		Options{MaxHops: 2, MaxNodesPerHop: 3})
	require.NoError(t, err)
	assert.Len(t, res.Nodes, 4, "seed plus the three-node discovery budget")
	for id, hop := range res.Hops {
		if id != person.ID() {
			assert.Equal(t, 1, hop)
		}
	}

	res, err = e.FromSeeds(context.Background(), []string{person.ID()},
		Options{MaxHops: 1, MaxNodesPerHop: 2})
	require.NoError(t, err)
	assert.Len(t, res.Nodes, 3, "reaching the budget mid-hop stops discovery")
}

func TestFromSeedsRelationshipTypeFilter(t *testing.T) {
	e, store := newTestEngine(t)
	user, person, _, _ := chainFixture(t, store)

	res, err := e.FromSeeds(context.Background(), []string{person.ID()}, Options{
		MaxHops:           1,
		RelationshipTypes: []string{schema.UserKnows},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{person.ID(), user.ID()}, resultIDs(res))
}

func TestFromSeedsUnknownSeeds(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.FromSeeds(context.Background(), []string{"ghost"}, Options{MaxHops: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Nodes)

	res, err = e.FromSeeds(context.Background(), nil, Options{MaxHops: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Nodes)
}

func TestFindRelatedTasks(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	org := createNode(t, store, schema.Organization, map[string]any{"name": "Acme"})
	message := createNode(t, store, schema.Message, map[string]any{"content": "acme update"})
	extracted := createNode(t, store, schema.Task, map[string]any{"title": "follow up", "status": schema.TaskPending})
	direct := createNode(t, store, schema.Task, map[string]any{"title": "renew contract", "status": schema.TaskCompleted})
	relate(t, store, schema.Organization, org.ID(), schema.MentionedIn, schema.Message, message.ID())
	relate(t, store, schema.Task, extracted.ID(), schema.ExtractedFrom, schema.Message, message.ID())
	relate(t, store, schema.Task, direct.ID(), schema.RelatedTo, schema.Organization, org.ID())

	all, err := e.FindRelatedTasks(ctx, org.ID(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := e.FindRelatedTasks(ctx, org.ID(), []string{schema.TaskPending, schema.TaskInProgress})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, extracted.ID(), pending[0].ID())
}

func TestFindTaskDependencies(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	t1 := createNode(t, store, schema.Task, map[string]any{"title": "ship"})
	t2 := createNode(t, store, schema.Task, map[string]any{"title": "build"})
	t3 := createNode(t, store, schema.Task, map[string]any{"title": "release notes"})
	relate(t, store, schema.Task, t1.ID(), schema.DependsOn, schema.Task, t2.ID())
	relate(t, store, schema.Task, t3.ID(), schema.DependsOn, schema.Task, t1.ID())

	deps, err := e.FindTaskDependencies(ctx, t1.ID())
	require.NoError(t, err)
	require.Len(t, deps, 1, "only outbound DEPENDS_ON edges count")
	assert.Equal(t, t2.ID(), deps[0].ID())

	leaf, err := e.FindTaskDependencies(ctx, t2.ID())
	require.NoError(t, err)
	assert.Empty(t, leaf)
}

func TestFindUserContext(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	user, _, message, _ := chainFixture(t, store)

	path, err := e.FindUserContext(ctx, user.ID(), message.ID())
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Len(t, path.Nodes, 3)
	assert.Len(t, path.Relationships, 2)

	island := createNode(t, store, schema.Person, map[string]any{"name": "Hermit"})
	path, err = e.FindUserContext(ctx, user.ID(), island.ID())
	require.NoError(t, err)
	assert.Nil(t, path)
}
