package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
)

// MergeStrategy selects how conflicting properties are combined when two
// nodes are merged.
type MergeStrategy string

const (
	// NewerWins keeps the chronologically later value for timestamp
	// properties, the maximum for confidence, and otherwise only fills
	// gaps in the surviving node.
	NewerWins MergeStrategy = "newer_wins"

	// SourceWins takes the absorbed node's value for every property it
	// carries, even when that value is empty.
	SourceWins MergeStrategy = "source_wins"

	// TargetWins keeps the surviving node's values, filling only gaps.
	TargetWins MergeStrategy = "target_wins"
)

// mergeBookkeeping are source properties that must not leak onto the
// surviving node during a merge.
var mergeBookkeeping = map[string]bool{
	"id":          true,
	"merged":      true,
	"merged_into": true,
	"merged_at":   true,
}

// Merge absorbs the source node into the target node: properties are
// combined per the strategy, the source's relationships are re-pointed at
// the target, the source is marked merged with a redirect, and the target's
// embedding is refreshed. The source node is kept as a tombstone; it is
// never returned by Resolve again.
func (r *Resolver) Merge(ctx context.Context, entityType, sourceID, targetID string, strategy MergeStrategy) (*graph.Node, error) {
	const op = "Resolver.Merge"
	if sourceID == targetID {
		return nil, nexuserr.Validation(op, fmt.Errorf("cannot merge node %q into itself", sourceID))
	}

	source, err := r.store.GetNode(ctx, entityType, map[string]any{"id": sourceID})
	if err != nil {
		return nil, err
	}
	target, err := r.store.GetNode(ctx, entityType, map[string]any{"id": targetID})
	if err != nil {
		return nil, err
	}

	update := mergeProperties(source, target, strategy)
	if _, err := r.store.UpdateNode(ctx, entityType, map[string]any{"id": targetID}, update); err != nil {
		return nil, err
	}

	if err := r.transferRelationships(ctx, sourceID, targetID); err != nil {
		return nil, err
	}

	_, err = r.store.UpdateNode(ctx, entityType, map[string]any{"id": sourceID}, map[string]any{
		"merged":      true,
		"merged_into": targetID,
		"merged_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	merged, err := r.store.GetNode(ctx, entityType, map[string]any{"id": targetID})
	if err != nil {
		return nil, err
	}
	r.refreshEmbedding(ctx, entityType, merged)
	r.dropEmbedding(ctx, entityType, sourceID)

	r.logger.Info("merged duplicate entity",
		"type", entityType, "source", sourceID, "target", targetID, "strategy", string(strategy))
	return merged, nil
}

// mergeProperties combines the source's properties into an update map for
// the target. The target's existing properties are the baseline; the
// strategy decides which source values overwrite.
func mergeProperties(source, target *graph.Node, strategy MergeStrategy) map[string]any {
	update := make(map[string]any, len(source.Props)+2)

	for key, sv := range source.Props {
		if mergeBookkeeping[key] {
			continue
		}
		tv, present := target.Props[key]
		if !present {
			update[key] = sv
			continue
		}
		switch strategy {
		case SourceWins:
			update[key] = sv
		case TargetWins:
			if isEmpty(tv) && !isEmpty(sv) {
				update[key] = sv
			}
		default: // NewerWins
			switch {
			case isTimestampKey(key):
				st, tt := source.TimeProp(key), target.TimeProp(key)
				if !st.IsZero() && (tt.IsZero() || st.After(tt)) {
					update[key] = sv
				}
			case key == "confidence":
				if source.FloatProp(key) > target.FloatProp(key) {
					update[key] = sv
				}
			default:
				if isEmpty(tv) && !isEmpty(sv) {
					update[key] = sv
				}
			}
		}
	}

	update["merged_count"] = target.IntProp("merged_count") + 1
	update["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	return update
}

// transferRelationships re-points every edge incident to the source at the
// target, preserving direction and skipping edges the target already has to
// the same endpoint with the same type.
func (r *Resolver) transferRelationships(ctx context.Context, sourceID, targetID string) error {
	rels, err := r.store.IncidentRelationships(ctx, sourceID)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		other := rel.Other(sourceID)
		if other == "" || other == targetID {
			continue
		}
		exists, err := r.store.RelationshipExists(ctx, targetID, rel.Type, other)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		from, to := targetID, other
		if rel.TargetID == sourceID {
			from, to = other, targetID
		}
		if err := r.store.MergeRelationshipByID(ctx, from, rel.Type, to, rel.Props); err != nil {
			return err
		}
	}
	return nil
}

// refreshEmbedding re-embeds the node's textual identity and upserts it
// into the type-scoped collection. Failures are logged, not fatal; the
// graph-side merge has already committed.
func (r *Resolver) refreshEmbedding(ctx context.Context, entityType string, node *graph.Node) {
	if r.vectors == nil || r.embedder == nil {
		return
	}
	name := node.StringProp("name")
	if name == "" {
		name = node.StringProp("text")
	}
	text := strings.TrimSpace(name + " " + node.StringProp("description"))
	if text == "" {
		return
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		if err != nil {
			r.logger.Warn("re-embedding merged entity failed", "id", node.ID(), "error", err)
		}
		return
	}
	snippet := text
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}
	payload := map[string]any{"id": node.ID(), "text": snippet, "type": entityType}
	if err := r.vectors.Upsert(ctx, EntityCollection(entityType), node.ID(), vec, payload); err != nil {
		r.logger.Warn("upserting merged entity embedding failed", "id", node.ID(), "error", err)
	}
}

// dropEmbedding removes the absorbed node's vector so stale points do not
// accumulate in the collection.
func (r *Resolver) dropEmbedding(ctx context.Context, entityType, nodeID string) {
	if r.vectors == nil {
		return
	}
	if err := r.vectors.Delete(ctx, EntityCollection(entityType), nodeID); err != nil {
		r.logger.Warn("deleting absorbed entity embedding failed", "id", nodeID, "error", err)
	}
}

func isTimestampKey(key string) bool {
	return key == "timestamp" || strings.HasSuffix(key, "_at")
}

// isEmpty reports whether a property value carries no information: nil,
// empty string, zero number, false, or an empty collection.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float32:
		return t == 0
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
