package traverse

import (
	"context"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/schema"
)

// FindRelatedTasks returns tasks connected to the entity, either directly
// through RELATED_TO or through a message the entity is mentioned in that a
// task was extracted from. An empty status filter returns every status.
func (e *Engine) FindRelatedTasks(ctx context.Context, nodeID string, statuses []string) ([]*graph.Node, error) {
	seen := make(map[string]bool)
	var tasks []*graph.Node
	keep := func(node *graph.Node) {
		id := node.ID()
		if id == "" || seen[id] {
			return
		}
		if len(statuses) > 0 && !containsString(statuses, node.StringProp("status")) {
			return
		}
		seen[id] = true
		tasks = append(tasks, node)
	}

	direct, err := e.store.Expand(ctx, []string{nodeID}, graph.ExpandOptions{
		RelationshipTypes: []string{schema.RelatedTo},
		NodeTypes:         []string{schema.Task},
	})
	if err != nil {
		return nil, err
	}
	for _, ex := range direct {
		keep(ex.Node)
	}

	mentions, err := e.store.Expand(ctx, []string{nodeID}, graph.ExpandOptions{
		RelationshipTypes: []string{schema.MentionedIn},
		NodeTypes:         []string{schema.Message},
	})
	if err != nil {
		return nil, err
	}
	var messageIDs []string
	for _, ex := range mentions {
		if id := ex.Node.ID(); id != "" {
			messageIDs = append(messageIDs, id)
		}
	}
	if len(messageIDs) > 0 {
		extracted, err := e.store.Expand(ctx, messageIDs, graph.ExpandOptions{
			RelationshipTypes: []string{schema.ExtractedFrom},
			NodeTypes:         []string{schema.Task},
		})
		if err != nil {
			return nil, err
		}
		for _, ex := range extracted {
			keep(ex.Node)
		}
	}
	return tasks, nil
}

// FindTaskDependencies returns the tasks the given task directly depends
// on, following outbound DEPENDS_ON edges one hop.
func (e *Engine) FindTaskDependencies(ctx context.Context, taskID string) ([]*graph.Node, error) {
	expansions, err := e.store.Expand(ctx, []string{taskID}, graph.ExpandOptions{
		RelationshipTypes: []string{schema.DependsOn},
		NodeTypes:         []string{schema.Task},
		Direction:         graph.Outgoing,
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var deps []*graph.Node
	for _, ex := range expansions {
		if id := ex.Node.ID(); id != "" && !seen[id] {
			seen[id] = true
			deps = append(deps, ex.Node)
		}
	}
	return deps, nil
}

// userContextMaxHops bounds how far apart a user and an entity may be
// before they are considered unconnected.
const userContextMaxHops = 4

// FindUserContext returns the shortest connection between a user and any
// entity, or nil when they are not connected within the hop bound.
func (e *Engine) FindUserContext(ctx context.Context, userID, entityID string) (*graph.Subgraph, error) {
	return e.store.ShortestPath(ctx, userID, entityID, userContextMaxHops)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
