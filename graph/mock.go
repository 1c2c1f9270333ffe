package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
)

// MockStore is an in-memory Store implementation for testing. It enforces
// the same schema validation as the real store and tracks method calls so
// tests can assert on store traffic.
type MockStore struct {
	mu       sync.RWMutex
	registry *schema.Registry

	nodes map[string]*Node
	rels  []*Relationship
	calls []string

	// forcedErr, when set, is returned by every operation.
	forcedErr error
}

// NewMockStore creates an empty in-memory store validating against the
// default registry.
func NewMockStore() *MockStore {
	return &MockStore{
		registry: schema.DefaultRegistry(),
		nodes:    make(map[string]*Node),
	}
}

// Fail makes every subsequent operation return err. Pass nil to clear.
func (m *MockStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedErr = err
}

// Calls returns the recorded method names in call order.
func (m *MockStore) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times the named method was invoked.
func (m *MockStore) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *MockStore) record(method string) error {
	m.calls = append(m.calls, method)
	return m.forcedErr
}

// InitializeSchema is a no-op for the in-memory store.
func (m *MockStore) InitializeSchema(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("InitializeSchema")
}

// CreateNode validates and inserts a node.
func (m *MockStore) CreateNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateNode"); err != nil {
		return nil, err
	}

	props = withDefaults(props)
	if err := m.registry.ValidateNode(label, props); err != nil {
		return nil, nexuserr.Validation("MockStore.CreateNode", err)
	}
	node := &Node{Label: label, Props: props}
	m.nodes[node.ID()] = node
	return node.Clone(), nil
}

// MergeNode validates and upserts a node by id.
func (m *MockStore) MergeNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("MergeNode"); err != nil {
		return nil, err
	}

	props = withDefaults(props)
	if err := m.registry.ValidateNode(label, props); err != nil {
		return nil, nexuserr.Validation("MockStore.MergeNode", err)
	}
	id := props["id"].(string)
	if existing, ok := m.nodes[id]; ok {
		for k, v := range props {
			existing.Props[k] = v
		}
		return existing.Clone(), nil
	}
	node := &Node{Label: label, Props: props}
	m.nodes[id] = node
	return node.Clone(), nil
}

// GetNode returns the first matching node.
func (m *MockStore) GetNode(ctx context.Context, label string, match map[string]any) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetNode"); err != nil {
		return nil, err
	}
	if !m.registry.IsNodeType(label) {
		return nil, nexuserr.Validation("MockStore.GetNode",
			fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}
	for _, node := range m.sortedNodes() {
		if node.Label == label && nodeMatches(node, match) {
			return node.Clone(), nil
		}
	}
	return nil, nexuserr.NotFound("MockStore.GetNode", nexuserr.ErrNodeNotFound).
		WithContext(map[string]any{"label": label, "match": match})
}

// FindNodes returns up to limit matching nodes.
func (m *MockStore) FindNodes(ctx context.Context, label string, match map[string]any, limit int) ([]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindNodes"); err != nil {
		return nil, err
	}
	if !m.registry.IsNodeType(label) {
		return nil, nexuserr.Validation("MockStore.FindNodes",
			fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}
	var out []*Node
	for _, node := range m.sortedNodes() {
		if node.Label == label && nodeMatches(node, match) {
			out = append(out, node.Clone())
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// UpdateNode sets update properties on matching nodes.
func (m *MockStore) UpdateNode(ctx context.Context, label string, match, update map[string]any) ([]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateNode"); err != nil {
		return nil, err
	}
	if err := m.registry.ValidateNode(label, update); err != nil {
		return nil, nexuserr.Validation("MockStore.UpdateNode", err)
	}
	var out []*Node
	for _, node := range m.sortedNodes() {
		if node.Label == label && nodeMatches(node, match) {
			for k, v := range update {
				node.Props[k] = v
			}
			out = append(out, node.Clone())
		}
	}
	return out, nil
}

// DeleteNode removes matching nodes and their incident relationships.
func (m *MockStore) DeleteNode(ctx context.Context, label string, match map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteNode"); err != nil {
		return err
	}
	if !m.registry.IsNodeType(label) {
		return nexuserr.Validation("MockStore.DeleteNode",
			fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}
	for id, node := range m.nodes {
		if node.Label == label && nodeMatches(node, match) {
			delete(m.nodes, id)
			m.detach(id)
		}
	}
	return nil
}

// CreateRelationship validates and inserts an edge.
func (m *MockStore) CreateRelationship(ctx context.Context, spec RelationshipSpec) error {
	return m.addRelationship("CreateRelationship", spec, false)
}

// MergeRelationship validates and upserts an edge.
func (m *MockStore) MergeRelationship(ctx context.Context, spec RelationshipSpec) error {
	return m.addRelationship("MergeRelationship", spec, true)
}

func (m *MockStore) addRelationship(method string, spec RelationshipSpec, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(method); err != nil {
		return err
	}
	if err := m.registry.ValidateRelationship(spec.Type, spec.FromLabel, spec.ToLabel, spec.Props); err != nil {
		return nexuserr.Validation("MockStore."+method, err)
	}

	from := m.firstMatch(spec.FromLabel, spec.FromMatch)
	to := m.firstMatch(spec.ToLabel, spec.ToMatch)
	if from == nil || to == nil {
		return nexuserr.NotFound("MockStore."+method, nexuserr.ErrNodeNotFound)
	}

	if merge {
		for _, rel := range m.rels {
			if rel.SourceID == from.ID() && rel.TargetID == to.ID() && rel.Type == spec.Type {
				for k, v := range spec.Props {
					if rel.Props == nil {
						rel.Props = map[string]any{}
					}
					rel.Props[k] = v
				}
				return nil
			}
		}
	}
	m.rels = append(m.rels, &Relationship{
		Type:     spec.Type,
		SourceID: from.ID(),
		TargetID: to.ID(),
		Props:    spec.Props,
	})
	return nil
}

// MergeRelationshipByID upserts an edge between two nodes addressed by ID.
func (m *MockStore) MergeRelationshipByID(ctx context.Context, fromID, relType, toID string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("MergeRelationshipByID"); err != nil {
		return err
	}
	if !m.registry.IsRelationshipType(relType) {
		return nexuserr.Validation("MockStore.MergeRelationshipByID",
			fmt.Errorf("%w: %q", nexuserr.ErrUnknownRelationshipType, relType))
	}
	if _, ok := m.nodes[fromID]; !ok {
		return nexuserr.NotFound("MockStore.MergeRelationshipByID", nexuserr.ErrNodeNotFound)
	}
	if _, ok := m.nodes[toID]; !ok {
		return nexuserr.NotFound("MockStore.MergeRelationshipByID", nexuserr.ErrNodeNotFound)
	}
	for _, rel := range m.rels {
		if rel.SourceID == fromID && rel.TargetID == toID && rel.Type == relType {
			for k, v := range props {
				if rel.Props == nil {
					rel.Props = map[string]any{}
				}
				rel.Props[k] = v
			}
			return nil
		}
	}
	m.rels = append(m.rels, &Relationship{
		Type:     relType,
		SourceID: fromID,
		TargetID: toID,
		Props:    props,
	})
	return nil
}

// RelationshipExists reports whether the edge exists in either direction.
func (m *MockStore) RelationshipExists(ctx context.Context, fromID, relType, toID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RelationshipExists"); err != nil {
		return false, err
	}
	for _, rel := range m.rels {
		if rel.Type != relType {
			continue
		}
		if (rel.SourceID == fromID && rel.TargetID == toID) ||
			(rel.SourceID == toID && rel.TargetID == fromID) {
			return true, nil
		}
	}
	return false, nil
}

// IncidentRelationships returns every edge touching the node.
func (m *MockStore) IncidentRelationships(ctx context.Context, nodeID string) ([]*Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("IncidentRelationships"); err != nil {
		return nil, err
	}
	var out []*Relationship
	for _, rel := range m.rels {
		if rel.SourceID == nodeID || rel.TargetID == nodeID {
			out = append(out, rel)
		}
	}
	return out, nil
}

// DeleteRelationship removes a specific directed edge.
func (m *MockStore) DeleteRelationship(ctx context.Context, fromID, relType, toID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteRelationship"); err != nil {
		return err
	}
	kept := m.rels[:0]
	for _, rel := range m.rels {
		if rel.SourceID == fromID && rel.Type == relType && rel.TargetID == toID {
			continue
		}
		kept = append(kept, rel)
	}
	m.rels = kept
	return nil
}

// NeighborIDs returns the distinct directly connected node IDs.
func (m *MockStore) NeighborIDs(ctx context.Context, nodeID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("NeighborIDs"); err != nil {
		return nil, err
	}
	return m.neighborIDsLocked(nodeID), nil
}

func (m *MockStore) neighborIDsLocked(nodeID string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rel := range m.rels {
		if other := rel.Other(nodeID); other != "" && !seen[other] {
			seen[other] = true
			ids = append(ids, other)
		}
	}
	sort.Strings(ids)
	return ids
}

// Expand performs a one-hop filtered expansion of the frontier.
func (m *MockStore) Expand(ctx context.Context, nodeIDs []string, opts ExpandOptions) ([]Expansion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Expand"); err != nil {
		return nil, err
	}

	relTypeOK := func(t string) bool {
		if len(opts.RelationshipTypes) == 0 {
			return true
		}
		for _, rt := range opts.RelationshipTypes {
			if rt == t {
				return true
			}
		}
		return false
	}
	labelOK := func(l string) bool {
		if len(opts.NodeTypes) == 0 {
			return true
		}
		for _, nt := range opts.NodeTypes {
			if nt == l {
				return true
			}
		}
		return false
	}

	var out []Expansion
	for _, id := range nodeIDs {
		for _, rel := range m.rels {
			if !relTypeOK(rel.Type) {
				continue
			}
			var otherID string
			switch opts.Direction {
			case Outgoing:
				if rel.SourceID == id {
					otherID = rel.TargetID
				}
			case Incoming:
				if rel.TargetID == id {
					otherID = rel.SourceID
				}
			default:
				otherID = rel.Other(id)
			}
			if otherID == "" {
				continue
			}
			node, ok := m.nodes[otherID]
			if !ok || !labelOK(node.Label) {
				continue
			}
			out = append(out, Expansion{
				SourceID:     id,
				Node:         node.Clone(),
				Relationship: rel,
			})
		}
	}
	return out, nil
}

// NodesSharingNeighbors returns non-merged label nodes sharing at least
// minShared neighbors with the given set, ordered by overlap.
func (m *MockStore) NodesSharingNeighbors(ctx context.Context, label string, neighborIDs []string, minShared int) ([]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("NodesSharingNeighbors"); err != nil {
		return nil, err
	}
	if !m.registry.IsNodeType(label) {
		return nil, nexuserr.Validation("MockStore.NodesSharingNeighbors",
			fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}

	want := make(map[string]bool, len(neighborIDs))
	for _, id := range neighborIDs {
		want[id] = true
	}

	type scored struct {
		node   *Node
		shared int
	}
	var candidates []scored
	for _, node := range m.sortedNodes() {
		if node.Label != label || node.IsMerged() {
			continue
		}
		shared := 0
		for _, nid := range m.neighborIDsLocked(node.ID()) {
			if want[nid] {
				shared++
			}
		}
		if shared >= minShared {
			candidates = append(candidates, scored{node.Clone(), shared})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].shared > candidates[j].shared
	})
	out := make([]*Node, len(candidates))
	for i, c := range candidates {
		out[i] = c.node
	}
	return out, nil
}

// ShortestPath returns the shortest undirected path within maxHops, or nil.
func (m *MockStore) ShortestPath(ctx context.Context, fromID, toID string, maxHops int) (*Subgraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ShortestPath"); err != nil {
		return nil, err
	}

	type step struct {
		id  string
		via *Relationship
	}
	parents := map[string]step{fromID: {}}
	frontier := []string{fromID}
	found := fromID == toID

	for hop := 0; hop < maxHops && !found && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, rel := range m.rels {
				other := rel.Other(id)
				if other == "" {
					continue
				}
				if _, visited := parents[other]; visited {
					continue
				}
				parents[other] = step{id: id, via: rel}
				next = append(next, other)
				if other == toID {
					found = true
				}
			}
		}
		frontier = next
	}
	if !found {
		return nil, nil
	}

	sub := &Subgraph{}
	cur := toID
	for {
		if node, ok := m.nodes[cur]; ok {
			sub.Nodes = append([]*Node{node.Clone()}, sub.Nodes...)
		}
		p := parents[cur]
		if p.via == nil {
			break
		}
		sub.Relationships = append([]*Relationship{p.via}, sub.Relationships...)
		cur = p.id
	}
	return sub, nil
}

// FindOlderThan returns non-archived, non-merged nodes older than cutoff.
func (m *MockStore) FindOlderThan(ctx context.Context, label, timestampProp string, cutoff time.Time, limit int) ([]*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindOlderThan"); err != nil {
		return nil, err
	}
	if !m.registry.IsNodeType(label) {
		return nil, nexuserr.Validation("MockStore.FindOlderThan",
			fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}
	var out []*Node
	for _, node := range m.sortedNodes() {
		if node.Label != label || node.IsMerged() {
			continue
		}
		if node.StringProp("status") == schema.StatusArchived {
			continue
		}
		ts := node.TimeProp(timestampProp)
		if ts.IsZero() || !ts.Before(cutoff) {
			continue
		}
		out = append(out, node.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Touch records an access on the node.
func (m *MockStore) Touch(ctx context.Context, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Touch"); err != nil {
		return err
	}
	node, ok := m.nodes[nodeID]
	if !ok {
		return nexuserr.NotFound("MockStore.Touch", nexuserr.ErrNodeNotFound)
	}
	node.Props["last_accessed_at"] = time.Now().UTC().Format(time.RFC3339)
	node.Props["access_count"] = node.IntProp("access_count") + 1
	return nil
}

// RunQuery records the call and returns no rows; the mock does not
// interpret Cypher.
func (m *MockStore) RunQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RunQuery"); err != nil {
		return nil, err
	}
	return nil, nil
}

// TraverseFromNodes returns the subgraph reachable from the seeds within
// maxHops.
func (m *MockStore) TraverseFromNodes(ctx context.Context, nodeIDs []string, maxHops int) (*Subgraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("TraverseFromNodes"); err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	frontier := []string{}
	sub := &Subgraph{}
	for _, id := range nodeIDs {
		if node, ok := m.nodes[id]; ok && !visited[id] {
			visited[id] = true
			sub.Nodes = append(sub.Nodes, node.Clone())
			frontier = append(frontier, id)
		}
	}

	seenRels := make(map[*Relationship]bool)
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, rel := range m.rels {
				other := rel.Other(id)
				if other == "" {
					continue
				}
				if !seenRels[rel] {
					seenRels[rel] = true
					sub.Relationships = append(sub.Relationships, rel)
				}
				if visited[other] {
					continue
				}
				if node, ok := m.nodes[other]; ok {
					visited[other] = true
					sub.Nodes = append(sub.Nodes, node.Clone())
					next = append(next, other)
				}
			}
		}
		frontier = next
	}
	return sub, nil
}

// Health always succeeds unless a forced error is set.
func (m *MockStore) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("Health")
}

// Close is a no-op for the in-memory store.
func (m *MockStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("Close")
}

func (m *MockStore) firstMatch(label string, match map[string]any) *Node {
	for _, node := range m.sortedNodes() {
		if node.Label == label && nodeMatches(node, match) {
			return node
		}
	}
	return nil
}

func (m *MockStore) detach(nodeID string) {
	kept := m.rels[:0]
	for _, rel := range m.rels {
		if rel.SourceID == nodeID || rel.TargetID == nodeID {
			continue
		}
		kept = append(kept, rel)
	}
	m.rels = kept
}

func (m *MockStore) sortedNodes() []*Node {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = m.nodes[id]
	}
	return nodes
}

func nodeMatches(node *Node, match map[string]any) bool {
	for k, v := range match {
		if node.Props[k] != v {
			return false
		}
	}
	return true
}
