package nexus

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration, loadable from YAML.
type Config struct {
	// Graph configures the Neo4j graph store connection.
	Graph GraphConfig `yaml:"graph"`

	// Vector configures the Qdrant vector store connection.
	Vector VectorConfig `yaml:"vector"`

	// Redis configures the distributed cache tier.
	Redis RedisConfig `yaml:"redis"`

	// Cache configures the in-process cache tiers.
	Cache CacheConfig `yaml:"cache"`

	// Resolution configures the entity resolution thresholds.
	Resolution ResolutionConfig `yaml:"resolution"`

	// Retrieval configures the hybrid retrieval pipeline.
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// GraphConfig holds Neo4j connection settings.
type GraphConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database,omitempty"`

	// MaxConnectionPoolSize limits concurrent driver connections. Default: 50.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size,omitempty"`

	// ConnectTimeout is the maximum time to wait for connection establishment.
	// Format: Go duration string (e.g., "5s"). Default: 5s.
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// GetConnectTimeout parses the connect timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (g *GraphConfig) GetConnectTimeout() time.Duration {
	if g == nil || g.ConnectTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(g.ConnectTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetMaxConnectionPoolSize returns the configured pool size or the default.
func (g *GraphConfig) GetMaxConnectionPoolSize() int {
	if g == nil || g.MaxConnectionPoolSize <= 0 {
		return 50
	}
	return g.MaxConnectionPoolSize
}

// VectorConfig holds Qdrant connection settings.
type VectorConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`

	// Dimension is the fixed embedding vector dimension. Default: 768.
	Dimension int `yaml:"dimension,omitempty"`

	// Collection is the shared document collection name. Default: "knowledge".
	Collection string `yaml:"collection,omitempty"`
}

// GetPort returns the configured gRPC port or the Qdrant default.
func (v *VectorConfig) GetPort() int {
	if v == nil || v.Port <= 0 {
		return 6334
	}
	return v.Port
}

// GetDimension returns the configured vector dimension or the default.
func (v *VectorConfig) GetDimension() int {
	if v == nil || v.Dimension <= 0 {
		return 768
	}
	return v.Dimension
}

// GetCollection returns the shared collection name or the default.
func (v *VectorConfig) GetCollection() string {
	if v == nil || v.Collection == "" {
		return "knowledge"
	}
	return v.Collection
}

// RedisConfig holds settings for the distributed cache tier.
type RedisConfig struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string `yaml:"url"`

	// ConnectTimeout is the maximum time to wait for connection establishment.
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// GetConnectTimeout parses the connect timeout string and returns a duration.
func (r *RedisConfig) GetConnectTimeout() time.Duration {
	if r == nil || r.ConnectTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(r.ConnectTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// CacheConfig holds sizing and TTL settings for the in-process cache tiers.
type CacheConfig struct {
	// NodeCacheSize bounds the hot node cache. Default: 10000.
	NodeCacheSize int `yaml:"node_cache_size,omitempty"`

	// NodeCacheTTL is the per-entry lifetime of cached nodes. Default: 30m.
	NodeCacheTTL string `yaml:"node_cache_ttl,omitempty"`

	// EmbeddingCacheSize bounds the embedding cache. Default: 5000.
	EmbeddingCacheSize int `yaml:"embedding_cache_size,omitempty"`

	// EmbeddingCacheTTL is the per-entry lifetime of cached embeddings. Default: 1h.
	EmbeddingCacheTTL string `yaml:"embedding_cache_ttl,omitempty"`

	// NodeRedisTTL is the lifetime of node entries in the distributed tier. Default: 4h.
	NodeRedisTTL string `yaml:"node_redis_ttl,omitempty"`

	// OperationTTL is the default lifetime of cached operation results. Default: 10m.
	OperationTTL string `yaml:"operation_ttl,omitempty"`
}

// GetNodeCacheSize returns the node cache capacity or the default.
func (c *CacheConfig) GetNodeCacheSize() int {
	if c == nil || c.NodeCacheSize <= 0 {
		return 10000
	}
	return c.NodeCacheSize
}

// GetNodeCacheTTL parses the node cache TTL or returns the default.
func (c *CacheConfig) GetNodeCacheTTL() time.Duration {
	return parseDurationOr(c.ttl("node"), 30*time.Minute)
}

// GetEmbeddingCacheSize returns the embedding cache capacity or the default.
func (c *CacheConfig) GetEmbeddingCacheSize() int {
	if c == nil || c.EmbeddingCacheSize <= 0 {
		return 5000
	}
	return c.EmbeddingCacheSize
}

// GetEmbeddingCacheTTL parses the embedding cache TTL or returns the default.
func (c *CacheConfig) GetEmbeddingCacheTTL() time.Duration {
	return parseDurationOr(c.ttl("embedding"), time.Hour)
}

// GetNodeRedisTTL parses the distributed node TTL or returns the default.
func (c *CacheConfig) GetNodeRedisTTL() time.Duration {
	return parseDurationOr(c.ttl("node_redis"), 4*time.Hour)
}

// GetOperationTTL parses the operation result TTL or returns the default.
func (c *CacheConfig) GetOperationTTL() time.Duration {
	return parseDurationOr(c.ttl("operation"), 10*time.Minute)
}

func (c *CacheConfig) ttl(which string) string {
	if c == nil {
		return ""
	}
	switch which {
	case "node":
		return c.NodeCacheTTL
	case "embedding":
		return c.EmbeddingCacheTTL
	case "node_redis":
		return c.NodeRedisTTL
	case "operation":
		return c.OperationTTL
	}
	return ""
}

// ResolutionConfig holds entity resolution thresholds.
type ResolutionConfig struct {
	// FuzzyMatchThreshold is the minimum token-sort similarity score in
	// [0,100] for a fuzzy name match. Default: 85.
	FuzzyMatchThreshold int `yaml:"fuzzy_match_threshold,omitempty"`

	// SimilarityThreshold is the minimum cosine similarity for a semantic
	// match. Default: 0.85.
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`

	// CandidateSampleSize bounds the same-type candidate sample for fuzzy
	// matching. Default: 100.
	CandidateSampleSize int `yaml:"candidate_sample_size,omitempty"`
}

// GetFuzzyMatchThreshold returns the fuzzy threshold or the default.
func (r *ResolutionConfig) GetFuzzyMatchThreshold() int {
	if r == nil || r.FuzzyMatchThreshold <= 0 {
		return 85
	}
	return r.FuzzyMatchThreshold
}

// GetSimilarityThreshold returns the semantic threshold or the default.
func (r *ResolutionConfig) GetSimilarityThreshold() float64 {
	if r == nil || r.SimilarityThreshold <= 0 {
		return 0.85
	}
	return r.SimilarityThreshold
}

// GetCandidateSampleSize returns the candidate sample bound or the default.
func (r *ResolutionConfig) GetCandidateSampleSize() int {
	if r == nil || r.CandidateSampleSize <= 0 {
		return 100
	}
	return r.CandidateSampleSize
}

// RetrievalConfig holds hybrid retrieval pipeline settings.
type RetrievalConfig struct {
	// MaxResults caps the vector similarity result set. Default: 10.
	MaxResults int `yaml:"max_results,omitempty"`

	// SimilarityThreshold drops vector hits scoring below it. Default: 0.7.
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`

	// MaxNodesPerTraversal bounds accumulated nodes per traversal. Default: 25.
	MaxNodesPerTraversal int `yaml:"max_nodes_per_traversal,omitempty"`
}

// GetMaxResults returns the vector result cap or the default.
func (r *RetrievalConfig) GetMaxResults() int {
	if r == nil || r.MaxResults <= 0 {
		return 10
	}
	return r.MaxResults
}

// GetSimilarityThreshold returns the retrieval threshold or the default.
func (r *RetrievalConfig) GetSimilarityThreshold() float64 {
	if r == nil || r.SimilarityThreshold <= 0 {
		return 0.7
	}
	return r.SimilarityThreshold
}

// GetMaxNodesPerTraversal returns the traversal node budget or the default.
func (r *RetrievalConfig) GetMaxNodesPerTraversal() int {
	if r == nil || r.MaxNodesPerTraversal <= 0 {
		return 25
	}
	return r.MaxNodesPerTraversal
}

// DefaultConfig returns a Config populated with local development defaults.
func DefaultConfig() Config {
	return Config{
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "neo4j",
		},
		Vector: VectorConfig{
			Host: "localhost",
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379",
		},
	}
}

// LoadConfig reads and parses a YAML configuration file from the given path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
