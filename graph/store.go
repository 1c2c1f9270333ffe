// Package graph provides the typed, schema-validated adapter over the
// labeled-property graph store backing the engine.
package graph

import (
	"context"
	"time"
)

// Store provides typed graph operations. Every mutating call validates its
// labels, relationship types, and properties against the schema registry
// before any store round trip; validation failures never reach the backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// InitializeSchema creates the unique constraints and indexes declared
	// by the registry. Idempotent.
	InitializeSchema(ctx context.Context) error

	// CreateNode inserts a new node. Fails if the label or any property is
	// not declared in the schema.
	CreateNode(ctx context.Context, label string, props map[string]any) (*Node, error)

	// MergeNode upserts a node by its id property, setting the remaining
	// properties on create and on match.
	MergeNode(ctx context.Context, label string, props map[string]any) (*Node, error)

	// GetNode returns the first node of the label matching all given
	// properties, or a not_found error.
	GetNode(ctx context.Context, label string, match map[string]any) (*Node, error)

	// FindNodes returns up to limit nodes of the label matching all given
	// properties. A limit <= 0 means no limit.
	FindNodes(ctx context.Context, label string, match map[string]any, limit int) ([]*Node, error)

	// UpdateNode sets update properties on every node matching match, and
	// returns the updated nodes.
	UpdateNode(ctx context.Context, label string, match, update map[string]any) ([]*Node, error)

	// DeleteNode removes matching nodes and all their incident
	// relationships (cascading detach).
	DeleteNode(ctx context.Context, label string, match map[string]any) error

	// CreateRelationship creates a typed edge between two matched nodes.
	CreateRelationship(ctx context.Context, spec RelationshipSpec) error

	// MergeRelationship upserts a typed edge between two matched nodes:
	// a second call with the same (source, type, target) tuple does not
	// create a duplicate edge.
	MergeRelationship(ctx context.Context, spec RelationshipSpec) error

	// MergeRelationshipByID upserts a typed edge between two nodes addressed
	// by ID, without label validation. Used when re-pointing already
	// validated edges, where the endpoint labels are not known.
	MergeRelationshipByID(ctx context.Context, fromID, relType, toID string, props map[string]any) error

	// RelationshipExists reports whether an edge of the given type exists
	// between the two node IDs, in either direction.
	RelationshipExists(ctx context.Context, fromID, relType, toID string) (bool, error)

	// IncidentRelationships returns every edge touching the node, in both
	// directions.
	IncidentRelationships(ctx context.Context, nodeID string) ([]*Relationship, error)

	// DeleteRelationship removes a specific edge between two node IDs.
	DeleteRelationship(ctx context.Context, fromID, relType, toID string) error

	// NeighborIDs returns the distinct IDs of nodes directly connected to
	// the given node, in either direction.
	NeighborIDs(ctx context.Context, nodeID string) ([]string, error)

	// Expand performs a one-hop expansion of the given frontier, returning
	// each discovered neighbor attributed to the frontier node it was
	// reached from.
	Expand(ctx context.Context, nodeIDs []string, opts ExpandOptions) ([]Expansion, error)

	// NodesSharingNeighbors returns non-merged nodes of the label that
	// share at least minShared direct neighbors with the given neighbor ID
	// set, ordered by descending overlap.
	NodesSharingNeighbors(ctx context.Context, label string, neighborIDs []string, minShared int) ([]*Node, error)

	// ShortestPath returns the shortest undirected path between two nodes
	// within maxHops, or nil if none exists.
	ShortestPath(ctx context.Context, fromID, toID string, maxHops int) (*Subgraph, error)

	// FindOlderThan returns non-merged nodes of the label whose timestamp
	// property is before the cutoff, skipping already archived nodes.
	FindOlderThan(ctx context.Context, label, timestampProp string, cutoff time.Time, limit int) ([]*Node, error)

	// Touch records an access on the node: sets last_accessed_at to now
	// and increments access_count.
	Touch(ctx context.Context, nodeID string) error

	// RunQuery executes a raw query with parameters and returns the rows.
	// Intended for administrative and diagnostic use; typed operations are
	// preferred everywhere else.
	RunQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// TraverseFromNodes returns the subgraph reachable from the seed node
	// IDs within maxHops, in either direction.
	TraverseFromNodes(ctx context.Context, nodeIDs []string, maxHops int) (*Subgraph, error)

	// Health verifies backend connectivity.
	Health(ctx context.Context) error

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}

var (
	_ Store = (*Neo4jStore)(nil)
	_ Store = (*MockStore)(nil)
)
