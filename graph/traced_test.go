package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nexusgraph/nexus/schema"
)

func TestTracedStoreDelegates(t *testing.T) {
	inner := NewMockStore()
	traced := NewTracedStore(inner, noop.NewTracerProvider().Tracer("test"))
	ctx := context.Background()

	node, err := traced.CreateNode(ctx, schema.Person, map[string]any{"id": "p1", "name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "p1", node.ID())

	got, err := traced.GetNode(ctx, schema.Person, map[string]any{"id": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.StringProp("name"))

	_, err = traced.CreateNode(ctx, "Widget", map[string]any{"id": "w1"})
	assert.Error(t, err, "errors pass through the tracing layer")

	require.NoError(t, traced.MergeRelationship(ctx, RelationshipSpec{
		FromLabel: schema.Person,
		ToLabel:   schema.Person,
		Type:      schema.ConnectedTo,
		FromMatch: map[string]any{"id": "p1"},
		ToMatch:   map[string]any{"id": "p1"},
	}))

	sub, err := traced.TraverseFromNodes(ctx, []string{"p1"}, 1)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 1)
}
