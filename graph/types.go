package graph

import (
	"time"
)

// Node is a typed record in the labeled-property graph. The label is one of
// the declared schema types and the properties are an untyped map validated
// against the registry before any mutation.
type Node struct {
	Label string         `json:"label"`
	Props map[string]any `json:"props"`
}

// ID returns the node's globally unique identifier, or "" if unset.
func (n *Node) ID() string {
	return n.StringProp("id")
}

// StringProp returns a string property, or "" if absent or not a string.
func (n *Node) StringProp(name string) string {
	if n == nil || n.Props == nil {
		return ""
	}
	if s, ok := n.Props[name].(string); ok {
		return s
	}
	return ""
}

// BoolProp returns a boolean property, or false if absent.
func (n *Node) BoolProp(name string) bool {
	if n == nil || n.Props == nil {
		return false
	}
	if b, ok := n.Props[name].(bool); ok {
		return b
	}
	return false
}

// FloatProp returns a numeric property as float64, or 0 if absent.
func (n *Node) FloatProp(name string) float64 {
	if n == nil || n.Props == nil {
		return 0
	}
	switch v := n.Props[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// IntProp returns a numeric property as int, or 0 if absent.
func (n *Node) IntProp(name string) int {
	return int(n.FloatProp(name))
}

// TimeProp returns a datetime property, or the zero time if absent. Datetime
// properties are stored as RFC 3339 strings or native time values.
func (n *Node) TimeProp(name string) time.Time {
	if n == nil || n.Props == nil {
		return time.Time{}
	}
	switch v := n.Props[name].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// IsMerged reports whether this node has been absorbed into another.
func (n *Node) IsMerged() bool {
	return n.BoolProp("merged")
}

// NodeState is the lifecycle state of a node, derived from its bookkeeping
// properties. Using a single tagged state keeps callers from checking
// "merged" and "merged_into" independently and disagreeing.
type NodeState struct {
	Kind StateKind

	// RedirectsTo is the absorbing node's ID when Kind is StateMerged.
	RedirectsTo string
}

// StateKind enumerates the node lifecycle states.
type StateKind int

const (
	StateActive StateKind = iota
	StateMerged
	StateArchived
	StateCanceled
)

// State derives the lifecycle state from the node's bookkeeping properties.
// A merged flag takes precedence over status.
func (n *Node) State() NodeState {
	if n.IsMerged() {
		return NodeState{Kind: StateMerged, RedirectsTo: n.StringProp("merged_into")}
	}
	switch n.StringProp("status") {
	case "archived":
		return NodeState{Kind: StateArchived}
	case "canceled":
		return NodeState{Kind: StateCanceled}
	}
	return NodeState{Kind: StateActive}
}

// Clone returns a deep copy of the node's label and one level of properties.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		props[k] = v
	}
	return &Node{Label: n.Label, Props: props}
}

// Relationship is a typed, directed edge between two nodes, identified by
// the endpoints' node IDs.
type Relationship struct {
	Type     string         `json:"type"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Props    map[string]any `json:"props,omitempty"`
}

// Other returns the endpoint opposite to the given node ID, or "" when the
// relationship does not touch it.
func (r *Relationship) Other(nodeID string) string {
	switch nodeID {
	case r.SourceID:
		return r.TargetID
	case r.TargetID:
		return r.SourceID
	}
	return ""
}

// Subgraph is a connected slice of the graph: a node set and the
// relationships between them.
type Subgraph struct {
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
}

// Direction selects which edges to follow relative to a node.
type Direction int

const (
	// Both follows edges regardless of direction.
	Both Direction = iota
	// Outgoing follows edges where the node is the source.
	Outgoing
	// Incoming follows edges where the node is the target.
	Incoming
)

// ExpandOptions filters a one-hop expansion of a node frontier.
type ExpandOptions struct {
	// RelationshipTypes restricts which edge types are followed.
	// Empty means all types.
	RelationshipTypes []string

	// NodeTypes restricts which neighbor labels are returned.
	// Empty means all labels.
	NodeTypes []string

	// Direction selects the edge orientation to follow. Defaults to Both.
	Direction Direction
}

// Expansion is one discovered neighbor during a frontier expansion,
// attributed to the frontier node it was reached from.
type Expansion struct {
	SourceID     string
	Node         *Node
	Relationship *Relationship
}

// RelationshipSpec describes a relationship to create or merge. The endpoint
// nodes are matched by label and property map, the same way ingestion
// records address them.
type RelationshipSpec struct {
	FromLabel string
	ToLabel   string
	Type      string
	FromMatch map[string]any
	ToMatch   map[string]any
	Props     map[string]any
}
