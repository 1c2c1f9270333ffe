// Package traverse implements bounded breadth-first exploration of the
// knowledge graph, used to widen vector search hits into connected context.
package traverse

import (
	"context"
	"log/slog"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
)

// Engine runs multi-hop traversals against the graph store.
type Engine struct {
	store  graph.Store
	logger *slog.Logger
}

// NewEngine creates a traversal engine.
func NewEngine(store graph.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Options bounds and filters a traversal.
type Options struct {
	// MaxHops is how many hops outward seeds are expanded. Zero still
	// returns the seeds and their direct neighbors; only the neighbors are
	// not expanded further.
	MaxHops int

	// MaxNodesPerHop caps how many nodes the whole traversal may discover
	// beyond the seeds. Expansion stops entirely once the cap is reached,
	// even mid-hop. Zero uses 25.
	MaxNodesPerHop int

	// RelationshipTypes restricts which edge types are followed.
	RelationshipTypes []string

	// NodeTypes restricts which node labels are discovered.
	NodeTypes []string

	// Direction selects the edge orientation to follow. Defaults to Both.
	Direction graph.Direction
}

func (o Options) budget() int {
	if o.MaxNodesPerHop <= 0 {
		return 25
	}
	return o.MaxNodesPerHop
}

// Result is the discovered neighborhood. Hops records the hop at which each
// node was first discovered; seeds are hop 0.
type Result struct {
	Nodes         []*graph.Node
	Relationships []*graph.Relationship
	Hops          map[string]int
}

// FromSeeds explores outward from the seed node IDs breadth-first. Each
// node is visited once, so cycles terminate; revisiting edges between
// already-known nodes still records the edge. Unknown seed IDs are ignored.
func (e *Engine) FromSeeds(ctx context.Context, seedIDs []string, opts Options) (*Result, error) {
	const op = "traverse.Engine.FromSeeds"

	res := &Result{Hops: make(map[string]int)}
	if len(seedIDs) == 0 {
		return res, nil
	}

	seeds, err := e.store.TraverseFromNodes(ctx, seedIDs, 0)
	if err != nil {
		return nil, err
	}
	visited := make(map[string]bool)
	var frontier []string
	for _, node := range seeds.Nodes {
		id := node.ID()
		if id == "" || visited[id] {
			continue
		}
		visited[id] = true
		res.Nodes = append(res.Nodes, node)
		res.Hops[id] = 0
		frontier = append(frontier, id)
	}

	expandOpts := graph.ExpandOptions{
		RelationshipTypes: opts.RelationshipTypes,
		NodeTypes:         opts.NodeTypes,
		Direction:         opts.Direction,
	}
	seenRels := make(map[string]bool)

	discovered := 0
	for hop := 0; hop <= opts.MaxHops && len(frontier) > 0 && discovered < opts.budget(); hop++ {
		if ctx.Err() != nil {
			return nil, nexuserr.FromContext(op, ctx.Err())
		}
		expansions, err := e.store.Expand(ctx, frontier, expandOpts)
		if err != nil {
			return nil, err
		}

		var next []string
		for _, ex := range expansions {
			id := ex.Node.ID()
			if id == "" {
				continue
			}
			if rel := ex.Relationship; rel != nil {
				key := rel.SourceID + "|" + rel.Type + "|" + rel.TargetID
				if !seenRels[key] {
					seenRels[key] = true
					res.Relationships = append(res.Relationships, rel)
				}
			}
			if visited[id] {
				continue
			}
			if discovered >= opts.budget() {
				next = nil
				break
			}
			visited[id] = true
			discovered++
			res.Nodes = append(res.Nodes, ex.Node)
			res.Hops[id] = hop + 1
			next = append(next, id)
		}
		frontier = next
	}

	e.logger.Debug("traversal complete",
		"seeds", len(seedIDs), "max_hops", opts.MaxHops,
		"nodes", len(res.Nodes), "relationships", len(res.Relationships))
	return res, nil
}

// Subgraph converts the result into a plain subgraph.
func (r *Result) Subgraph() *graph.Subgraph {
	return &graph.Subgraph{Nodes: r.Nodes, Relationships: r.Relationships}
}
