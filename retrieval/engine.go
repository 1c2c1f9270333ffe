// Package retrieval combines vector similarity search with graph traversal:
// queries are embedded, matched against stored documents, and the matches
// are widened into their graph neighborhood, including open tasks.
package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexusgraph/nexus/cache"
	"github.com/nexusgraph/nexus/embedding"
	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
	"github.com/nexusgraph/nexus/traverse"
	"github.com/nexusgraph/nexus/vector"
)

const opKeyPrefix = "op:"

// Options configures the retrieval engine. Zero values use the defaults.
type Options struct {
	// Collection is the vector collection documents are stored in.
	// Empty uses "knowledge".
	Collection string

	// MaxResults caps vector hits per query. Zero uses 10.
	MaxResults int

	// ScoreThreshold is the minimum similarity for a vector hit.
	// Zero uses 0.7.
	ScoreThreshold float64

	// MaxNodesPerHop bounds traversal growth. Zero uses 25.
	MaxNodesPerHop int

	// CacheSize bounds the in-process operation cache. Zero uses 1000.
	CacheSize int

	// CacheTTL is the operation cache lifetime. Zero uses 10m.
	CacheTTL time.Duration

	// Redis is the optional shared operation cache tier.
	Redis *cache.Redis

	Logger *slog.Logger
}

func (o Options) collection() string {
	if o.Collection == "" {
		return "knowledge"
	}
	return o.Collection
}

func (o Options) maxResults() int {
	if o.MaxResults <= 0 {
		return 10
	}
	return o.MaxResults
}

func (o Options) threshold() float64 {
	if o.ScoreThreshold <= 0 {
		return 0.7
	}
	return o.ScoreThreshold
}

func (o Options) hopBudget() int {
	if o.MaxNodesPerHop <= 0 {
		return 25
	}
	return o.MaxNodesPerHop
}

func (o Options) cacheSize() int {
	if o.CacheSize <= 0 {
		return 1000
	}
	return o.CacheSize
}

func (o Options) cacheTTL() time.Duration {
	if o.CacheTTL <= 0 {
		return 10 * time.Minute
	}
	return o.CacheTTL
}

// Engine answers hybrid queries over the document collection and the graph.
type Engine struct {
	store     graph.Store
	vectors   vector.Store
	embedder  embedding.Embedder
	traverser *traverse.Engine
	opts      Options

	memory *cache.Memory[*Result]
	redis  *cache.Redis
	logger *slog.Logger
}

// NewEngine creates a retrieval engine over the given stores.
func NewEngine(store graph.Store, vectors vector.Store, embedder embedding.Embedder, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		vectors:   vectors,
		embedder:  embedder,
		traverser: traverse.NewEngine(store, logger),
		opts:      opts,
		memory:    cache.NewMemory[*Result](opts.cacheSize(), opts.cacheTTL()),
		redis:     opts.Redis,
		logger:    logger,
	}
}

// Collection returns the document collection name.
func (e *Engine) Collection() string {
	return e.opts.collection()
}

// Document is a text payload stored for semantic retrieval.
type Document struct {
	// ID identifies the document; empty generates one.
	ID string

	// Text is the content to embed.
	Text string

	// Metadata is carried in the vector payload and returned with hits.
	Metadata map[string]any

	// Label optionally anchors the document to a graph node of that
	// type, so hybrid queries can widen from it. Empty stores the
	// document in the vector collection only.
	Label string

	// NodeProps are the graph node properties when Label is set. They
	// must be declared in the schema; id and embedding_id are filled in.
	NodeProps map[string]any

	// Relationships are edges created after the node, each validated
	// against the schema.
	Relationships []graph.RelationshipSpec
}

// Hit is one scored vector match.
type Hit struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Query bounds a hybrid search.
type Query struct {
	// Text is the natural-language query.
	Text string

	// MaxHops is how far hits are widened into the graph. Zero keeps the
	// hits and their direct neighbors.
	MaxHops int

	// Filters are payload equality filters applied to vector hits.
	Filters map[string]string
}

// Result is a hybrid search answer: the scored hits, their graph
// neighborhood, and open tasks attached to the discovered entities.
type Result struct {
	Query string          `json:"query"`
	Hits  []Hit           `json:"hits"`
	Graph *graph.Subgraph `json:"graph"`

	// Tasks are the distinct open tasks found across the neighborhood.
	Tasks []*graph.Node `json:"tasks,omitempty"`

	// TasksByNode maps each reached node to its open tasks.
	TasksByNode map[string][]*graph.Node `json:"tasks_by_node,omitempty"`

	FromCache     bool      `json:"-"`
	RetrievedAt   time.Time `json:"retrieved_at"`
	TraversedHops int       `json:"traversed_hops"`
}

// cacheHit returns a shallow copy flagged as cache-served, leaving the
// cached value untouched so concurrent readers of the same key never see a
// write to it.
func (r *Result) cacheHit() *Result {
	cp := *r
	cp.FromCache = true
	return &cp
}

// StoreDocument embeds the document and upserts it into the collection,
// returning the document ID. When a label is set it first merges the
// anchoring graph node, keyed by the document ID, and creates the given
// relationships.
func (e *Engine) StoreDocument(ctx context.Context, doc Document) (string, error) {
	const op = "retrieval.Engine.StoreDocument"
	if strings.TrimSpace(doc.Text) == "" {
		return "", nexuserr.Validation(op, fmt.Errorf("document text cannot be empty"))
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	vec, err := e.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return "", nexuserr.Unavailable(op, err)
	}
	if len(vec) == 0 {
		return "", nexuserr.Unavailable(op, fmt.Errorf("embedder returned no vector"))
	}

	if doc.Label != "" {
		props := make(map[string]any, len(doc.NodeProps)+2)
		for k, v := range doc.NodeProps {
			props[k] = v
		}
		props["id"] = doc.ID
		props["embedding_id"] = doc.ID
		if _, err := e.store.MergeNode(ctx, doc.Label, props); err != nil {
			return "", err
		}
		for _, spec := range doc.Relationships {
			if err := e.store.MergeRelationship(ctx, spec); err != nil {
				return "", err
			}
		}
	} else if len(doc.Relationships) > 0 {
		return "", nexuserr.Validation(op, fmt.Errorf("relationships require a node label"))
	}

	payload := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		payload[k] = v
	}
	payload["id"] = doc.ID
	payload["text"] = doc.Text

	if err := e.vectors.Upsert(ctx, e.opts.collection(), doc.ID, vec, payload); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// SemanticSearch embeds the query and returns the scored vector hits, with
// no graph involvement.
func (e *Engine) SemanticSearch(ctx context.Context, text string, limit int) ([]Hit, error) {
	const op = "retrieval.Engine.SemanticSearch"
	if limit <= 0 {
		limit = e.opts.maxResults()
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, nexuserr.Unavailable(op, err)
	}
	if len(vec) == 0 {
		return nil, nil
	}

	raw, err := e.vectors.Search(ctx, e.opts.collection(), vec, limit, float32(e.opts.threshold()))
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Payload: h.Payload})
	}
	return hits, nil
}

// HybridSearch answers the query from the operation cache when possible,
// otherwise embeds it, collects vector hits, widens them into the graph,
// and gathers open tasks for the discovered entities. An empty hit set
// short-circuits without touching the graph.
func (e *Engine) HybridSearch(ctx context.Context, q Query) (*Result, error) {
	key := opKey(q)
	if res, ok := e.memory.Get(key); ok {
		return res.cacheHit(), nil
	}
	if e.redis != nil {
		var res Result
		found, err := e.redis.Get(ctx, key, &res)
		if err != nil {
			e.logger.Warn("operation cache read failed", "error", err)
		} else if found {
			e.memory.Set(key, &res)
			return res.cacheHit(), nil
		}
	}

	res, err := e.hybridSearch(ctx, q)
	if err != nil {
		return nil, err
	}
	e.memory.Set(key, res)
	if e.redis != nil {
		if err := e.redis.Set(ctx, key, res, e.opts.cacheTTL()); err != nil {
			e.logger.Warn("operation cache write failed", "error", err)
		}
	}
	return res, nil
}

func (e *Engine) hybridSearch(ctx context.Context, q Query) (*Result, error) {
	res := &Result{
		Query:         q.Text,
		Graph:         &graph.Subgraph{},
		RetrievedAt:   time.Now().UTC(),
		TraversedHops: q.MaxHops,
	}

	hits, err := e.SemanticSearch(ctx, q.Text, e.opts.maxResults())
	if err != nil {
		return nil, err
	}
	res.Hits = filterHits(hits, q.Filters)
	if len(res.Hits) == 0 {
		return res, nil
	}

	seeds := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		seeds = append(seeds, hit.ID)
	}
	traversal, err := e.traverser.FromSeeds(ctx, seeds, traverse.Options{
		MaxHops:        q.MaxHops,
		MaxNodesPerHop: e.opts.hopBudget(),
	})
	if err != nil {
		return nil, err
	}
	res.Graph = traversal.Subgraph()

	if err := e.attachOpenTasks(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// attachOpenTasks looks up pending and in-progress tasks for every node the
// traversal reached, recording them per node and as a deduplicated list.
func (e *Engine) attachOpenTasks(ctx context.Context, res *Result) error {
	open := []string{schema.TaskPending, schema.TaskInProgress}
	seen := make(map[string]bool)
	for _, node := range res.Graph.Nodes {
		id := node.ID()
		if id == "" || node.Label == schema.Task {
			continue
		}
		related, err := e.traverser.FindRelatedTasks(ctx, id, open)
		if err != nil {
			return err
		}
		if len(related) == 0 {
			continue
		}
		if res.TasksByNode == nil {
			res.TasksByNode = make(map[string][]*graph.Node)
		}
		res.TasksByNode[id] = related
		for _, task := range related {
			if tid := task.ID(); tid != "" && !seen[tid] {
				seen[tid] = true
				res.Tasks = append(res.Tasks, task)
			}
		}
	}
	return nil
}

// Flush empties the operation cache, both tiers. Wired as the relationship
// write hook on the cached store: any edge change may invalidate any cached
// traversal, so the whole cache goes.
func (e *Engine) Flush(ctx context.Context) {
	e.memory.Purge()
	if e.redis != nil {
		if err := e.redis.DeletePrefix(ctx, opKeyPrefix); err != nil {
			e.logger.Warn("operation cache flush failed", "error", err)
		}
	}
}

func filterHits(hits []Hit, filters map[string]string) []Hit {
	if len(filters) == 0 {
		return hits
	}
	out := hits[:0]
	for _, hit := range hits {
		keep := true
		for k, want := range filters {
			got, _ := hit.Payload[k].(string)
			if got != want {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, hit)
		}
	}
	return out
}

// opKey builds a deterministic cache key over the query text, filters, and
// hop count.
func opKey(q Query) string {
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", q.Text, q.MaxHops)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, q.Filters[k])
	}
	return fmt.Sprintf("%s%x", opKeyPrefix, h.Sum64())
}
