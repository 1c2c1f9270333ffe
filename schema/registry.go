package schema

import (
	"fmt"
	"sort"
)

// Registry holds the declared node and relationship types and answers
// validation queries. A Registry is immutable after construction and safe
// for concurrent use.
type Registry struct {
	nodes     map[string]NodeTypeInfo
	rels      map[string]RelationshipTypeInfo
	relIndexs []RelationshipIndex
}

// NewRegistry builds a Registry from explicit type tables. Most callers want
// DefaultRegistry instead.
func NewRegistry(nodes []NodeTypeInfo, rels []RelationshipTypeInfo, indexes []RelationshipIndex) *Registry {
	r := &Registry{
		nodes:     make(map[string]NodeTypeInfo, len(nodes)),
		rels:      make(map[string]RelationshipTypeInfo, len(rels)),
		relIndexs: indexes,
	}
	for _, n := range nodes {
		r.nodes[n.Label] = n
	}
	for _, rel := range rels {
		r.rels[rel.Type] = rel
	}
	return r
}

// IsNodeType reports whether the label is declared.
func (r *Registry) IsNodeType(label string) bool {
	_, ok := r.nodes[label]
	return ok
}

// IsRelationshipType reports whether the relationship type is declared.
func (r *Registry) IsRelationshipType(relType string) bool {
	_, ok := r.rels[relType]
	return ok
}

// NodeType returns the declaration for a label, or nil if unknown.
func (r *Registry) NodeType(label string) *NodeTypeInfo {
	if n, ok := r.nodes[label]; ok {
		return &n
	}
	return nil
}

// RelationshipType returns the declaration for a relationship type, or nil
// if unknown.
func (r *Registry) RelationshipType(relType string) *RelationshipTypeInfo {
	if rel, ok := r.rels[relType]; ok {
		return &rel
	}
	return nil
}

// NodeTypes returns all declared node labels, sorted.
func (r *Registry) NodeTypes() []string {
	labels := make([]string, 0, len(r.nodes))
	for label := range r.nodes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// RelationshipTypes returns all declared relationship types, sorted.
func (r *Registry) RelationshipTypes() []string {
	types := make([]string, 0, len(r.rels))
	for t := range r.rels {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ValidateNode checks that the label is declared and that every property is
// either declared for the label or engine-maintained bookkeeping. An unknown
// label or a disallowed property fails; properties are never silently
// dropped.
func (r *Registry) ValidateNode(label string, props map[string]any) error {
	info, ok := r.nodes[label]
	if !ok {
		return fmt.Errorf("unknown node type %q", label)
	}
	for name := range props {
		if _, declared := info.Properties[name]; declared {
			continue
		}
		if IsBookkeepingProperty(name) {
			continue
		}
		return fmt.Errorf("property %q is not allowed on node type %q", name, label)
	}
	return nil
}

// ValidateRelationship checks that the relationship type is declared, that
// the source and target labels are allowed for it, and that every
// relationship property is declared.
func (r *Registry) ValidateRelationship(relType, sourceLabel, targetLabel string, props map[string]any) error {
	info, ok := r.rels[relType]
	if !ok {
		return fmt.Errorf("unknown relationship type %q", relType)
	}
	if !contains(info.ValidSources, sourceLabel) {
		return fmt.Errorf("relationship %s does not allow source label %q (allowed: %v)", relType, sourceLabel, info.ValidSources)
	}
	if !contains(info.ValidTargets, targetLabel) {
		return fmt.Errorf("relationship %s does not allow target label %q (allowed: %v)", relType, targetLabel, info.ValidTargets)
	}
	for name := range props {
		if !contains(info.Properties, name) {
			return fmt.Errorf("property %q is not allowed on relationship %s", name, relType)
		}
	}
	return nil
}

// ConstraintStatements generates the store DDL for node uniqueness: one
// unique constraint on id per declared label.
func (r *Registry) ConstraintStatements() []string {
	stmts := make([]string, 0, len(r.nodes))
	for _, label := range r.NodeTypes() {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", label))
	}
	return stmts
}

// IndexStatements generates the store DDL for property indexes: every
// declared non-id node property, plus the registered relationship indexes.
func (r *Registry) IndexStatements() []string {
	var stmts []string
	for _, label := range r.NodeTypes() {
		info := r.nodes[label]
		props := make([]string, 0, len(info.Properties))
		for name := range info.Properties {
			if name != "id" {
				props = append(props, name)
			}
		}
		sort.Strings(props)
		for _, prop := range props {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.%s)", label, prop))
		}
	}
	for _, idx := range r.relIndexs {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)", idx.Type, idx.Property))
	}
	return stmts
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
