package retrieval

import (
	"context"

	"github.com/nexusgraph/nexus/graph"
)

// Connection is one edge from a retrieved document's node into the graph.
type Connection struct {
	Type   string `json:"type"`
	NodeID string `json:"node_id"`
	Label  string `json:"label,omitempty"`
	Name   string `json:"name,omitempty"`
}

// DocumentContext pairs a retrieved document with its graph connections.
type DocumentContext struct {
	Document    map[string]any `json:"document"`
	Score       float32        `json:"score"`
	Connections []Connection   `json:"connections"`
}

// GraphSummary sizes the neighborhood a query touched.
type GraphSummary struct {
	TotalNodes         int `json:"total_nodes"`
	TotalRelationships int `json:"total_relationships"`
}

// ContextResult is the answer-ready form of a hybrid search: each document
// annotated with its connections, plus the open tasks and a summary of the
// traversed neighborhood.
type ContextResult struct {
	Query        string            `json:"query"`
	Results      []DocumentContext `json:"results"`
	Tasks        []*graph.Node     `json:"tasks,omitempty"`
	GraphSummary GraphSummary      `json:"graph_summary"`
}

// RetrieveWithContext runs a hybrid search and reshapes the result around
// the retrieved documents: each hit carries its payload and the edges
// connecting it to the rest of the discovered neighborhood.
func (e *Engine) RetrieveWithContext(ctx context.Context, q Query) (*ContextResult, error) {
	res, err := e.HybridSearch(ctx, q)
	if err != nil {
		return nil, err
	}

	nodesByID := make(map[string]*graph.Node, len(res.Graph.Nodes))
	for _, node := range res.Graph.Nodes {
		nodesByID[node.ID()] = node
	}

	out := &ContextResult{
		Query: res.Query,
		Tasks: res.Tasks,
		GraphSummary: GraphSummary{
			TotalNodes:         len(res.Graph.Nodes),
			TotalRelationships: len(res.Graph.Relationships),
		},
	}

	for _, hit := range res.Hits {
		doc := DocumentContext{
			Document:    hit.Payload,
			Score:       hit.Score,
			Connections: []Connection{},
		}
		for _, rel := range res.Graph.Relationships {
			other := rel.Other(hit.ID)
			if other == "" {
				continue
			}
			conn := Connection{Type: rel.Type, NodeID: other}
			if node, ok := nodesByID[other]; ok {
				conn.Label = node.Label
				conn.Name = displayName(node)
			}
			doc.Connections = append(doc.Connections, conn)
		}
		out.Results = append(out.Results, doc)
	}
	return out, nil
}

// displayName picks a human-readable handle for a node.
func displayName(node *graph.Node) string {
	for _, prop := range []string{"name", "title", "content"} {
		if v := node.StringProp(prop); v != "" {
			if len(v) > 80 {
				return v[:80]
			}
			return v
		}
	}
	return ""
}
