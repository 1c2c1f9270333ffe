package nexus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/nexusgraph/nexus/archive"
	"github.com/nexusgraph/nexus/cache"
	"github.com/nexusgraph/nexus/embedding"
	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/resolve"
	"github.com/nexusgraph/nexus/retrieval"
	"github.com/nexusgraph/nexus/schema"
	"github.com/nexusgraph/nexus/traverse"
	"github.com/nexusgraph/nexus/vector"
)

// Engine is the assembled retrieval engine: the typed graph store behind
// its cache tiers, the vector store, and the resolution, traversal,
// retrieval, and archival components wired together.
type Engine struct {
	// Graph is the cached, schema-validated graph store.
	Graph *graph.CachedStore

	// Vector is the collection-scoped nearest-neighbor store.
	Vector vector.Store

	// Embedder is the caching wrapper around the caller's provider.
	Embedder embedding.Embedder

	// Resolver deduplicates incoming entities against the graph.
	Resolver *resolve.Resolver

	// Traverser runs bounded multi-hop expansions.
	Traverser *traverse.Engine

	// Retrieval answers hybrid vector-plus-graph queries.
	Retrieval *retrieval.Engine

	// Pruner ages nodes out into cold storage.
	Pruner *archive.Pruner

	backend *graph.Neo4jStore
	redis   *cache.Redis
	logger  *slog.Logger
}

type openOptions struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	cold     archive.ColdStorage
	registry *schema.Registry
}

// Option customizes Open.
type Option func(*openOptions)

// WithLogger sets the structured logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// WithTracer wraps the graph store with tracing spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *openOptions) { o.tracer = tracer }
}

// WithColdStorage overrides where the pruner archives aged nodes. The
// default uses the Redis tier when configured, falling back to process
// memory.
func WithColdStorage(cold archive.ColdStorage) Option {
	return func(o *openOptions) { o.cold = cold }
}

// WithRegistry overrides the schema registry. The default registry covers
// the standard personal-context vocabulary.
func WithRegistry(registry *schema.Registry) Option {
	return func(o *openOptions) { o.registry = registry }
}

// entityLabels are the node types the resolver keeps vector collections for.
var entityLabels = []string{schema.Person, schema.Organization, schema.Location, schema.Event}

// Open connects every backend in the configuration, initializes the graph
// schema and vector collections, and returns the wired engine. The caller
// supplies the embedding provider; the engine adds caching around it.
func Open(ctx context.Context, cfg Config, embedder embedding.Embedder, opts ...Option) (*Engine, error) {
	const op = "nexus.Open"
	if embedder == nil {
		return nil, nexuserr.Configuration(op, fmt.Errorf("%w: embedder is required", nexuserr.ErrInvalidConfig))
	}

	options := openOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := options.registry
	if registry == nil {
		registry = schema.DefaultRegistry()
	}

	backend, err := graph.NewNeo4jStore(graph.Config{
		URI:                   cfg.Graph.URI,
		Username:              cfg.Graph.Username,
		Password:              cfg.Graph.Password,
		Database:              cfg.Graph.Database,
		MaxConnectionPoolSize: cfg.Graph.GetMaxConnectionPoolSize(),
		ConnectTimeout:        cfg.Graph.GetConnectTimeout(),
	}, registry, logger)
	if err != nil {
		return nil, err
	}
	if err := backend.Connect(ctx); err != nil {
		return nil, err
	}
	if err := backend.InitializeSchema(ctx); err != nil {
		backend.Close(ctx)
		return nil, err
	}

	var store graph.Store = backend
	if options.tracer != nil {
		store = graph.NewTracedStore(store, options.tracer)
	}

	var redisTier *cache.Redis
	if cfg.Redis.URL != "" {
		redisTier, err = cache.NewRedis(cache.RedisOptions{
			URL:            cfg.Redis.URL,
			ConnectTimeout: cfg.Redis.GetConnectTimeout(),
		})
		if err != nil {
			backend.Close(ctx)
			return nil, err
		}
	}

	cached := graph.NewCachedStore(store, graph.CachedStoreOptions{
		MemorySize: cfg.Cache.GetNodeCacheSize(),
		MemoryTTL:  cfg.Cache.GetNodeCacheTTL(),
		Redis:      redisTier,
		RedisTTL:   cfg.Cache.GetNodeRedisTTL(),
		Logger:     logger,
	})

	cachedEmbedder := embedding.NewCached(embedder,
		cfg.Cache.GetEmbeddingCacheSize(), cfg.Cache.GetEmbeddingCacheTTL())

	vectors, err := vector.NewQdrantStore(vector.Config{
		Host:   cfg.Vector.Host,
		Port:   cfg.Vector.GetPort(),
		APIKey: cfg.Vector.APIKey,
		UseTLS: cfg.Vector.UseTLS,
	}, logger)
	if err != nil {
		closeQuietly(ctx, backend, redisTier, logger)
		return nil, err
	}

	dimension := cfg.Vector.GetDimension()
	collections := append([]string{cfg.Vector.GetCollection()}, entityCollections()...)
	for _, collection := range collections {
		if err := vectors.EnsureCollection(ctx, collection, dimension); err != nil {
			vectors.Close()
			closeQuietly(ctx, backend, redisTier, logger)
			return nil, err
		}
	}

	resolver := resolve.NewResolver(cached, vectors, cachedEmbedder, resolve.Options{
		FuzzyNameThreshold:  cfg.Resolution.GetFuzzyMatchThreshold(),
		SimilarityThreshold: cfg.Resolution.GetSimilarityThreshold(),
		CandidateSampleSize: cfg.Resolution.GetCandidateSampleSize(),
	}, logger)

	retr := retrieval.NewEngine(cached, vectors, cachedEmbedder, retrieval.Options{
		Collection:     cfg.Vector.GetCollection(),
		MaxResults:     cfg.Retrieval.GetMaxResults(),
		ScoreThreshold: cfg.Retrieval.GetSimilarityThreshold(),
		MaxNodesPerHop: cfg.Retrieval.GetMaxNodesPerTraversal(),
		CacheTTL:       cfg.Cache.GetOperationTTL(),
		Redis:          redisTier,
		Logger:         logger,
	})
	cached.OnRelationshipWrite(retr.Flush)

	cold := options.cold
	if cold == nil {
		if redisTier != nil {
			cold = archive.NewRedisColdStorage(redisTier)
		} else {
			cold = archive.NewMemoryColdStorage()
		}
	}

	engine := &Engine{
		Graph:     cached,
		Vector:    vectors,
		Embedder:  cachedEmbedder,
		Resolver:  resolver,
		Traverser: traverse.NewEngine(cached, logger),
		Retrieval: retr,
		Pruner:    archive.NewPruner(cached, cold, archive.PrunerOptions{Logger: logger}),
		backend:   backend,
		redis:     redisTier,
		logger:    logger,
	}
	logger.Info("engine ready",
		"graph", cfg.Graph.URI, "vector", cfg.Vector.Host, "redis_tier", redisTier != nil)
	return engine, nil
}

// entityCollections lists the vector collections backing entity resolution.
func entityCollections() []string {
	out := make([]string, len(entityLabels))
	for i, label := range entityLabels {
		out[i] = resolve.EntityCollection(label)
	}
	return out
}

// Health verifies connectivity to every configured backend.
func (e *Engine) Health(ctx context.Context) error {
	if err := e.Graph.Health(ctx); err != nil {
		return err
	}
	if err := e.Vector.Health(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Health(ctx)
	}
	return nil
}

// Close releases every backend connection.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.backend.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.Vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeQuietly(ctx context.Context, backend *graph.Neo4jStore, redisTier *cache.Redis, logger *slog.Logger) {
	if err := backend.Close(ctx); err != nil {
		logger.Warn("closing graph store failed", "error", err)
	}
	if redisTier != nil {
		if err := redisTier.Close(); err != nil {
			logger.Warn("closing redis tier failed", "error", err)
		}
	}
}
