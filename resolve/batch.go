package resolve

import (
	"context"
	"sort"

	"github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
)

// MergeCandidate is a pair of same-type nodes the batch scan believes refer
// to the same entity. The pair is a suggestion; callers confirm and Merge.
type MergeCandidate struct {
	EntityType string  `json:"entity_type"`
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Score      float64 `json:"score"`
}

// importantProps are the properties the batch scorer compares for exact
// matches across a candidate pair.
var importantProps = []string{
	"email", "phone", "title", "role", "company", "website", "address", "description",
}

// batchScoreWeights: name similarity dominates, neighbor overlap refines,
// exact property matches break ties.
const (
	nameWeight     = 0.6
	neighborWeight = 0.3
	propWeight     = 0.1
)

// BatchResolve scans up to limit live nodes of the type and scores every
// pair by weighted name similarity, shared-neighbor overlap, and exact
// property matches. Pairs scoring at or above the threshold are returned in
// descending score order. The scan is quadratic in the sample; callers
// bound limit accordingly.
func (r *Resolver) BatchResolve(ctx context.Context, entityType string, threshold float64, limit int) ([]MergeCandidate, error) {
	if threshold <= 0 {
		threshold = 0.9
	}

	nodes, err := r.store.FindNodes(ctx, entityType, nil, limit)
	if err != nil {
		return nil, err
	}
	live := nodes[:0]
	for _, node := range nodes {
		if node.State().Kind == graph.StateActive && node.ID() != "" {
			live = append(live, node)
		}
	}

	neighbors := make(map[string]map[string]bool, len(live))
	neighborSet := func(id string) (map[string]bool, error) {
		if set, ok := neighbors[id]; ok {
			return set, nil
		}
		ids, err := r.store.NeighborIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(ids))
		for _, nid := range ids {
			set[nid] = true
		}
		neighbors[id] = set
		return set, nil
	}

	seen := make(map[string]bool)
	var out []MergeCandidate
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			a, b := live[i], live[j]
			key := pairKey(a.ID(), b.ID())
			if seen[key] {
				continue
			}
			seen[key] = true

			an, err := neighborSet(a.ID())
			if err != nil {
				return nil, err
			}
			bn, err := neighborSet(b.ID())
			if err != nil {
				return nil, err
			}

			score := nameWeight*nameSimilarity(a, b) +
				neighborWeight*jaccard(an, bn) +
				propWeight*propertyMatchRatio(a, b)
			if score >= threshold {
				out = append(out, MergeCandidate{
					EntityType: entityType,
					SourceID:   a.ID(),
					TargetID:   b.ID(),
					Score:      score,
				})
			}
		}
		if ctx.Err() != nil {
			return nil, nexuserr.FromContext("Resolver.BatchResolve", ctx.Err())
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func nameSimilarity(a, b *graph.Node) float64 {
	an, bn := a.StringProp("name"), b.StringProp("name")
	if an == "" || bn == "" {
		return 0
	}
	return float64(fuzzy.TokenSortRatio(an, bn)) / 100
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for id := range a {
		if b[id] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// propertyMatchRatio is the fraction of important properties, present and
// non-empty on both nodes, whose values match exactly.
func propertyMatchRatio(a, b *graph.Node) float64 {
	common, exact := 0, 0
	for _, prop := range importantProps {
		av, bv := a.Props[prop], b.Props[prop]
		if isEmpty(av) || isEmpty(bv) {
			continue
		}
		common++
		if av == bv {
			exact++
		}
	}
	if common == 0 {
		return 0
	}
	return float64(exact) / float64(common)
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}
