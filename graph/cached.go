package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexusgraph/nexus/cache"
)

const nodeKeyPrefix = "node:"

// CachedStore wraps a Store with a two-tier node cache: a bounded
// in-process LRU backed by an optional shared Redis tier. Every write path
// invalidates the affected node entries before the caller sees the result,
// so a read after a write never returns the pre-write value. Relationship
// writes additionally flush the operation-result cache via the registered
// hook, since any cached traversal may be affected.
type CachedStore struct {
	Store

	memory   *cache.Memory[*Node]
	redis    *cache.Redis
	redisTTL time.Duration
	logger   *slog.Logger

	// flushOps flushes the operation-result cache. Registered by the
	// retrieval engine; nil until then.
	flushOps func(ctx context.Context)
}

// CachedStoreOptions configures the cache tiers.
type CachedStoreOptions struct {
	// MemorySize bounds the in-process node cache. Zero uses 10000.
	MemorySize int

	// MemoryTTL is the per-entry lifetime in process. Zero uses 30m.
	MemoryTTL time.Duration

	// Redis is the optional shared tier. Nil disables it.
	Redis *cache.Redis

	// RedisTTL is the shared-tier entry lifetime. Zero uses 4h.
	RedisTTL time.Duration

	Logger *slog.Logger
}

// NewCachedStore wraps inner with the configured cache tiers.
func NewCachedStore(inner Store, opts CachedStoreOptions) *CachedStore {
	if opts.MemorySize <= 0 {
		opts.MemorySize = 10000
	}
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = 30 * time.Minute
	}
	if opts.RedisTTL <= 0 {
		opts.RedisTTL = 4 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		Store:    inner,
		memory:   cache.NewMemory[*Node](opts.MemorySize, opts.MemoryTTL),
		redis:    opts.Redis,
		redisTTL: opts.RedisTTL,
		logger:   logger,
	}
}

// OnRelationshipWrite registers the operation-cache flush hook.
func (c *CachedStore) OnRelationshipWrite(flush func(ctx context.Context)) {
	c.flushOps = flush
}

// GetNode serves id-only lookups from the cache tiers, falling back to the
// store and filling both tiers on a miss.
func (c *CachedStore) GetNode(ctx context.Context, label string, match map[string]any) (*Node, error) {
	id, byID := idOnlyMatch(match)
	if !byID {
		return c.Store.GetNode(ctx, label, match)
	}

	if node, ok := c.memory.Get(nodeKeyPrefix + id); ok && node.Label == label {
		return node.Clone(), nil
	}
	if c.redis != nil {
		var node Node
		found, err := c.redis.Get(ctx, nodeKeyPrefix+id, &node)
		if err != nil {
			c.logger.Warn("node cache read failed", "id", id, "error", err)
		} else if found && node.Label == label {
			c.memory.Set(nodeKeyPrefix+id, &node)
			return node.Clone(), nil
		}
	}

	node, err := c.Store.GetNode(ctx, label, match)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, node)
	return node, nil
}

// CreateNode writes through and caches the created node.
func (c *CachedStore) CreateNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	node, err := c.Store.CreateNode(ctx, label, props)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, node)
	return node, nil
}

// MergeNode invalidates the node before the upsert, then caches the result.
func (c *CachedStore) MergeNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	if id, ok := props["id"].(string); ok && id != "" {
		c.invalidate(ctx, id)
	}
	node, err := c.Store.MergeNode(ctx, label, props)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, node)
	return node, nil
}

// UpdateNode invalidates every updated node.
func (c *CachedStore) UpdateNode(ctx context.Context, label string, match, update map[string]any) ([]*Node, error) {
	if id, ok := idOnlyMatch(match); ok {
		c.invalidate(ctx, id)
	}
	nodes, err := c.Store.UpdateNode(ctx, label, match, update)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		c.invalidate(ctx, node.ID())
	}
	return nodes, nil
}

// DeleteNode invalidates the matched nodes before removing them. A delete
// also detaches relationships, so the operation cache is flushed.
func (c *CachedStore) DeleteNode(ctx context.Context, label string, match map[string]any) error {
	if id, ok := idOnlyMatch(match); ok {
		c.invalidate(ctx, id)
	} else {
		nodes, err := c.Store.FindNodes(ctx, label, match, 0)
		if err != nil {
			return err
		}
		for _, node := range nodes {
			c.invalidate(ctx, node.ID())
		}
	}
	if err := c.Store.DeleteNode(ctx, label, match); err != nil {
		return err
	}
	c.flush(ctx)
	return nil
}

// CreateRelationship writes through and flushes the operation cache.
func (c *CachedStore) CreateRelationship(ctx context.Context, spec RelationshipSpec) error {
	if err := c.Store.CreateRelationship(ctx, spec); err != nil {
		return err
	}
	c.flush(ctx)
	return nil
}

// MergeRelationship writes through and flushes the operation cache.
func (c *CachedStore) MergeRelationship(ctx context.Context, spec RelationshipSpec) error {
	if err := c.Store.MergeRelationship(ctx, spec); err != nil {
		return err
	}
	c.flush(ctx)
	return nil
}

// MergeRelationshipByID writes through and flushes the operation cache.
func (c *CachedStore) MergeRelationshipByID(ctx context.Context, fromID, relType, toID string, props map[string]any) error {
	if err := c.Store.MergeRelationshipByID(ctx, fromID, relType, toID, props); err != nil {
		return err
	}
	c.flush(ctx)
	return nil
}

// DeleteRelationship writes through and flushes the operation cache.
func (c *CachedStore) DeleteRelationship(ctx context.Context, fromID, relType, toID string) error {
	if err := c.Store.DeleteRelationship(ctx, fromID, relType, toID); err != nil {
		return err
	}
	c.flush(ctx)
	return nil
}

// Touch invalidates the node's cache entries along with the access update.
func (c *CachedStore) Touch(ctx context.Context, nodeID string) error {
	c.invalidate(ctx, nodeID)
	return c.Store.Touch(ctx, nodeID)
}

// Invalidate removes the given node IDs from both cache tiers. Exposed for
// callers that mutate nodes through RunQuery.
func (c *CachedStore) Invalidate(ctx context.Context, nodeIDs ...string) {
	for _, id := range nodeIDs {
		c.invalidate(ctx, id)
	}
}

func (c *CachedStore) fill(ctx context.Context, node *Node) {
	id := node.ID()
	if id == "" {
		return
	}
	c.memory.Set(nodeKeyPrefix+id, node.Clone())
	if c.redis != nil {
		if err := c.redis.Set(ctx, nodeKeyPrefix+id, node, c.redisTTL); err != nil {
			c.logger.Warn("node cache write failed", "id", id, "error", err)
		}
	}
}

func (c *CachedStore) invalidate(ctx context.Context, id string) {
	if id == "" {
		return
	}
	c.memory.Delete(nodeKeyPrefix + id)
	if c.redis != nil {
		if err := c.redis.Delete(ctx, nodeKeyPrefix+id); err != nil {
			c.logger.Warn("node cache invalidation failed", "id", id, "error", err)
		}
	}
}

func (c *CachedStore) flush(ctx context.Context) {
	if c.flushOps != nil {
		c.flushOps(ctx)
	}
}

func idOnlyMatch(match map[string]any) (string, bool) {
	if len(match) != 1 {
		return "", false
	}
	id, ok := match["id"].(string)
	return id, ok && id != ""
}

var _ Store = (*CachedStore)(nil)
