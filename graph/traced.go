package graph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedStore wraps a Store with OpenTelemetry tracing. Each operation gets
// a span named "nexus.graph.<operation>" carrying the label, type, and
// result-size attributes relevant to it.
//
// Thread-safety: safe for concurrent access (delegates to the inner store).
type TracedStore struct {
	Store
	tracer trace.Tracer
}

// NewTracedStore wraps inner with tracing spans.
func NewTracedStore(inner Store, tracer trace.Tracer) *TracedStore {
	return &TracedStore{Store: inner, tracer: tracer}
}

func (t *TracedStore) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := t.tracer.Start(ctx, "nexus.graph."+name)
	span.SetAttributes(attrs...)
	return ctx, span, time.Now()
}

func finish(span trace.Span, start time.Time, err error) {
	span.SetAttributes(attribute.Float64("nexus.graph.duration_ms",
		float64(time.Since(start).Microseconds())/1000.0))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// CreateNode traces the node creation.
func (t *TracedStore) CreateNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	ctx, span, start := t.span(ctx, "create_node", attribute.String("nexus.node.label", label))
	node, err := t.Store.CreateNode(ctx, label, props)
	finish(span, start, err)
	return node, err
}

// MergeNode traces the node upsert.
func (t *TracedStore) MergeNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	ctx, span, start := t.span(ctx, "merge_node", attribute.String("nexus.node.label", label))
	node, err := t.Store.MergeNode(ctx, label, props)
	finish(span, start, err)
	return node, err
}

// GetNode traces the lookup.
func (t *TracedStore) GetNode(ctx context.Context, label string, match map[string]any) (*Node, error) {
	ctx, span, start := t.span(ctx, "get_node", attribute.String("nexus.node.label", label))
	node, err := t.Store.GetNode(ctx, label, match)
	finish(span, start, err)
	return node, err
}

// FindNodes traces the query and records the result count.
func (t *TracedStore) FindNodes(ctx context.Context, label string, match map[string]any, limit int) ([]*Node, error) {
	ctx, span, start := t.span(ctx, "find_nodes",
		attribute.String("nexus.node.label", label),
		attribute.Int("nexus.query.limit", limit))
	nodes, err := t.Store.FindNodes(ctx, label, match, limit)
	span.SetAttributes(attribute.Int("nexus.query.results", len(nodes)))
	finish(span, start, err)
	return nodes, err
}

// UpdateNode traces the update and records the affected count.
func (t *TracedStore) UpdateNode(ctx context.Context, label string, match, update map[string]any) ([]*Node, error) {
	ctx, span, start := t.span(ctx, "update_node", attribute.String("nexus.node.label", label))
	nodes, err := t.Store.UpdateNode(ctx, label, match, update)
	span.SetAttributes(attribute.Int("nexus.query.results", len(nodes)))
	finish(span, start, err)
	return nodes, err
}

// DeleteNode traces the cascading delete.
func (t *TracedStore) DeleteNode(ctx context.Context, label string, match map[string]any) error {
	ctx, span, start := t.span(ctx, "delete_node", attribute.String("nexus.node.label", label))
	err := t.Store.DeleteNode(ctx, label, match)
	finish(span, start, err)
	return err
}

// CreateRelationship traces the edge creation.
func (t *TracedStore) CreateRelationship(ctx context.Context, spec RelationshipSpec) error {
	ctx, span, start := t.span(ctx, "create_relationship",
		attribute.String("nexus.relationship.type", spec.Type))
	err := t.Store.CreateRelationship(ctx, spec)
	finish(span, start, err)
	return err
}

// MergeRelationship traces the edge upsert.
func (t *TracedStore) MergeRelationship(ctx context.Context, spec RelationshipSpec) error {
	ctx, span, start := t.span(ctx, "merge_relationship",
		attribute.String("nexus.relationship.type", spec.Type))
	err := t.Store.MergeRelationship(ctx, spec)
	finish(span, start, err)
	return err
}

// Expand traces the frontier expansion with frontier and result sizes.
func (t *TracedStore) Expand(ctx context.Context, nodeIDs []string, opts ExpandOptions) ([]Expansion, error) {
	ctx, span, start := t.span(ctx, "expand",
		attribute.Int("nexus.traverse.frontier", len(nodeIDs)))
	expansions, err := t.Store.Expand(ctx, nodeIDs, opts)
	span.SetAttributes(attribute.Int("nexus.traverse.expansions", len(expansions)))
	finish(span, start, err)
	return expansions, err
}

// TraverseFromNodes traces the subgraph expansion.
func (t *TracedStore) TraverseFromNodes(ctx context.Context, nodeIDs []string, maxHops int) (*Subgraph, error) {
	ctx, span, start := t.span(ctx, "traverse",
		attribute.Int("nexus.traverse.seeds", len(nodeIDs)),
		attribute.Int("nexus.traverse.max_hops", maxHops))
	sub, err := t.Store.TraverseFromNodes(ctx, nodeIDs, maxHops)
	if sub != nil {
		span.SetAttributes(
			attribute.Int("nexus.traverse.nodes", len(sub.Nodes)),
			attribute.Int("nexus.traverse.relationships", len(sub.Relationships)))
	}
	finish(span, start, err)
	return sub, err
}

// RunQuery traces raw query execution.
func (t *TracedStore) RunQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	ctx, span, start := t.span(ctx, "run_query")
	rows, err := t.Store.RunQuery(ctx, query, params)
	span.SetAttributes(attribute.Int("nexus.query.results", len(rows)))
	finish(span, start, err)
	return rows, err
}

var _ Store = (*TracedStore)(nil)
