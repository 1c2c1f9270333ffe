// Package embedding defines the text embedding boundary. The engine never
// computes embeddings itself; callers plug in a provider and the package
// adds caching on top.
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/nexusgraph/nexus/cache"
	"github.com/nexusgraph/nexus/nexuserr"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	// Embed returns the embedding for the text. An empty result with no
	// error means the provider declined; callers treat it as a miss.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector dimension.
	Dimension() int
}

// Func adapts a plain function into an Embedder. BatchFn is optional;
// when nil, EmbedBatch falls back to one Fn call per text.
type Func struct {
	Fn      func(ctx context.Context, text string) ([]float32, error)
	BatchFn func(ctx context.Context, texts []string) ([][]float32, error)
	Dim     int
}

// Embed calls the wrapped function.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.Fn(ctx, text)
}

// EmbedBatch calls BatchFn when set, otherwise Fn per text.
func (f Func) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.BatchFn != nil {
		return f.BatchFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Fn(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured dimension.
func (f Func) Dimension() int {
	return f.Dim
}

// Cached wraps an Embedder with a bounded in-process cache so repeated
// embeddings of the same text cost one provider call.
type Cached struct {
	inner Embedder
	cache *cache.Memory[[]float32]
}

// NewCached wraps inner with a cache of the given size and TTL. Zero values
// use 5000 entries and one hour.
func NewCached(inner Embedder, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 5000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{
		inner: inner,
		cache: cache.NewMemory[[]float32](size, ttl),
	}
}

// Embed serves from cache when possible. Empty results are not cached.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	key := textKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, nexuserr.Unavailable("Cached.Embed", err)
	}
	if len(vec) > 0 {
		c.cache.Set(key, vec)
	}
	return vec, nil
}

// EmbedBatch serves cached texts from memory and sends only the misses to
// the provider in one batch call.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if text == "" {
			continue
		}
		if vec, ok := c.cache.Get(textKey(text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, nexuserr.Unavailable("Cached.EmbedBatch", err)
	}
	if len(vecs) != len(missing) {
		return nil, nexuserr.Internal("Cached.EmbedBatch",
			fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(missing)))
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		if len(vec) > 0 {
			c.cache.Set(textKey(missing[j]), vec)
		}
	}
	return out, nil
}

// Dimension returns the inner embedder's dimension.
func (c *Cached) Dimension() int {
	return c.inner.Dimension()
}

// Len returns the number of cached embeddings.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func textKey(text string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	return fmt.Sprintf("emb:%x", h.Sum64())
}

var (
	_ Embedder = Func{}
	_ Embedder = (*Cached)(nil)
)
