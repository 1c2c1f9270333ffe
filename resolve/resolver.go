// Package resolve implements entity deduplication: deciding whether an
// incoming record refers to a node already in the graph, and merging
// duplicate nodes when it does.
package resolve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/nexusgraph/nexus/embedding"
	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
	"github.com/nexusgraph/nexus/vector"
)

// Options tunes the resolution strategies. Zero values use the defaults.
type Options struct {
	// FuzzyNameThreshold is the minimum token-sort ratio (0..100) for a
	// fuzzy name match. Zero uses 85.
	FuzzyNameThreshold int

	// SimilarityThreshold is the minimum cosine score for an embedding
	// match. Zero uses 0.85.
	SimilarityThreshold float64

	// CandidateSampleSize bounds how many same-type nodes the fuzzy name
	// strategy compares against. Zero uses 100.
	CandidateSampleSize int

	// MinSharedNeighbors is how many neighbors a node must share with the
	// incoming record before the relationship strategy counts it as the
	// same entity. Zero uses 2.
	MinSharedNeighbors int
}

func (o Options) fuzzyThreshold() int {
	if o.FuzzyNameThreshold <= 0 {
		return 85
	}
	return o.FuzzyNameThreshold
}

func (o Options) similarityThreshold() float64 {
	if o.SimilarityThreshold <= 0 {
		return 0.85
	}
	return o.SimilarityThreshold
}

func (o Options) sampleSize() int {
	if o.CandidateSampleSize <= 0 {
		return 100
	}
	return o.CandidateSampleSize
}

func (o Options) minShared() int {
	if o.MinSharedNeighbors <= 0 {
		return 2
	}
	return o.MinSharedNeighbors
}

// Candidate is an incoming record to resolve against the graph.
type Candidate struct {
	// Props are the record's extracted properties (name, email, ...).
	Props map[string]any

	// RelatedIDs are node IDs the record is known to connect to, used by
	// the relationship-overlap strategy.
	RelatedIDs []string
}

func (c Candidate) stringProp(name string) string {
	if c.Props == nil {
		return ""
	}
	s, _ := c.Props[name].(string)
	return strings.TrimSpace(s)
}

// Resolver matches incoming records against existing graph nodes using four
// strategies in strict priority order: exact identifiers, fuzzy name,
// embedding similarity, then relationship overlap. The first strategy that
// produces a live match wins; later strategies are not consulted.
type Resolver struct {
	store    graph.Store
	vectors  vector.Store
	embedder embedding.Embedder
	opts     Options
	logger   *slog.Logger
}

// NewResolver creates a resolver. The vector store and embedder may be nil,
// which disables the embedding strategy.
func NewResolver(store graph.Store, vectors vector.Store, embedder embedding.Embedder, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// EntityCollection returns the vector collection holding embeddings for
// nodes of the given label.
func EntityCollection(label string) string {
	return "entities_" + strings.ToLower(label)
}

// Resolve returns the ID of the existing node the candidate refers to, or
// "" when no strategy produced a match. A match that points at a merged
// node is followed through its redirect chain to the absorbing node.
func (r *Resolver) Resolve(ctx context.Context, entityType string, cand Candidate) (string, error) {
	const op = "Resolver.Resolve"

	if id, err := r.matchByIdentifier(ctx, entityType, cand); err != nil || id != "" {
		return id, err
	}
	if ctx.Err() != nil {
		return "", nexuserr.FromContext(op, ctx.Err())
	}

	if id, err := r.matchByName(ctx, entityType, cand); err != nil || id != "" {
		return id, err
	}
	if ctx.Err() != nil {
		return "", nexuserr.FromContext(op, ctx.Err())
	}

	if id := r.matchByEmbedding(ctx, entityType, cand); id != "" {
		return id, nil
	}
	if ctx.Err() != nil {
		return "", nexuserr.FromContext(op, ctx.Err())
	}

	return r.matchByRelationships(ctx, entityType, cand)
}

// matchByIdentifier checks type-specific unique identifiers: email and
// phone for people, domain, website and tax id for organizations, address
// for locations.
func (r *Resolver) matchByIdentifier(ctx context.Context, entityType string, cand Candidate) (string, error) {
	var matches []map[string]any

	switch entityType {
	case schema.Person:
		if email := cand.stringProp("email"); email != "" {
			matches = append(matches, map[string]any{"email": email})
		}
		if phone := NormalizePhone(cand.stringProp("phone")); phone != "" {
			matches = append(matches, map[string]any{"phone": phone})
		}
	case schema.Organization:
		if domain := NormalizeURL(cand.stringProp("domain")); domain != "" {
			matches = append(matches, map[string]any{"domain": domain})
		}
		if website := NormalizeURL(cand.stringProp("website")); website != "" {
			matches = append(matches, map[string]any{"website": website})
		}
		if taxID := cand.stringProp("tax_id"); taxID != "" {
			matches = append(matches, map[string]any{"tax_id": taxID})
		}
	case schema.Location:
		if coords := cand.stringProp("coordinates"); coords != "" {
			matches = append(matches, map[string]any{"coordinates": coords})
		}
		address := cand.stringProp("address")
		postal := cand.stringProp("postal_code")
		if address != "" && postal != "" {
			matches = append(matches, map[string]any{"address": address, "postal_code": postal})
		}
	}

	for _, match := range matches {
		nodes, err := r.store.FindNodes(ctx, entityType, match, 5)
		if err != nil {
			return "", err
		}
		for _, node := range nodes {
			if id, ok := r.liveID(ctx, entityType, node); ok {
				return id, nil
			}
		}
	}
	return "", nil
}

// matchByName compares the candidate's normalized name against a bounded
// sample of same-type nodes using a token-sort ratio, keeping the best
// scoring match at or above the threshold. Normalization strips honorifics
// and suffixes so "Dr. Alice Smith" and "Alice Smith Jr." compare equal.
func (r *Resolver) matchByName(ctx context.Context, entityType string, cand Candidate) (string, error) {
	name := NormalizeName(cand.stringProp("name"))
	if name == "" {
		return "", nil
	}

	nodes, err := r.store.FindNodes(ctx, entityType, nil, r.opts.sampleSize())
	if err != nil {
		return "", err
	}

	bestScore := 0
	var best *graph.Node
	for _, node := range nodes {
		other := NormalizeName(node.StringProp("name"))
		if other == "" || node.State().Kind != graph.StateActive {
			continue
		}
		score := fuzzy.TokenSortRatio(name, other)
		if score >= r.opts.fuzzyThreshold() && score > bestScore {
			bestScore = score
			best = node
		}
	}
	if best == nil {
		return "", nil
	}
	if id, ok := r.liveID(ctx, entityType, best); ok {
		return id, nil
	}
	return "", nil
}

// matchByEmbedding searches the type-scoped vector collection with an
// embedding of the candidate's name and description. Vector-side failures
// are logged and treated as no match so the remaining strategy still runs.
func (r *Resolver) matchByEmbedding(ctx context.Context, entityType string, cand Candidate) string {
	if r.vectors == nil || r.embedder == nil {
		return ""
	}
	text := strings.TrimSpace(cand.stringProp("name") + " " + cand.stringProp("description"))
	if text == "" {
		return ""
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.Warn("embedding for resolution failed", "type", entityType, "error", err)
		return ""
	}
	if len(vec) == 0 {
		return ""
	}

	hits, err := r.vectors.Search(ctx, EntityCollection(entityType), vec, 5, float32(r.opts.similarityThreshold()))
	if err != nil {
		r.logger.Warn("vector search for resolution failed", "type", entityType, "error", err)
		return ""
	}
	for _, hit := range hits {
		node, err := r.store.GetNode(ctx, entityType, map[string]any{"id": hit.ID})
		if err != nil {
			continue
		}
		if id, ok := r.liveID(ctx, entityType, node); ok {
			return id
		}
	}
	return ""
}

// matchByRelationships looks for a same-type node sharing enough direct
// neighbors with the candidate's known connections.
func (r *Resolver) matchByRelationships(ctx context.Context, entityType string, cand Candidate) (string, error) {
	if len(cand.RelatedIDs) < r.opts.minShared() {
		return "", nil
	}
	nodes, err := r.store.NodesSharingNeighbors(ctx, entityType, cand.RelatedIDs, r.opts.minShared())
	if err != nil {
		return "", err
	}
	for _, node := range nodes {
		if id, ok := r.liveID(ctx, entityType, node); ok {
			return id, nil
		}
	}
	return "", nil
}

// liveID follows merged_into redirects until it reaches a node that has not
// been absorbed, bounded to guard against redirect cycles.
func (r *Resolver) liveID(ctx context.Context, label string, node *graph.Node) (string, bool) {
	for hops := 0; hops < 5; hops++ {
		state := node.State()
		if state.Kind != graph.StateMerged {
			return node.ID(), node.ID() != ""
		}
		if state.RedirectsTo == "" {
			return "", false
		}
		next, err := r.store.GetNode(ctx, label, map[string]any{"id": state.RedirectsTo})
		if err != nil {
			return "", false
		}
		node = next
	}
	return "", false
}
