// Package vector provides the collection-scoped nearest-neighbor store
// adapter backing semantic search and entity resolution.
package vector

import (
	"context"
)

// Hit is one nearest-neighbor search result.
type Hit struct {
	// ID is the point identifier, which equals the graph node id for
	// entity collections and the document id for document collections.
	ID string

	// Score is the cosine similarity in [-1, 1]; higher is closer.
	Score float32

	// Payload carries the metadata stored with the point.
	Payload map[string]any
}

// Store is a collection-scoped vector store. Implementations must be safe
// for concurrent use.
type Store interface {
	// EnsureCollection creates the collection with the given vector
	// dimension if it does not exist. Idempotent.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert stores or replaces the point under id.
	Upsert(ctx context.Context, collection, id string, vec []float32, payload map[string]any) error

	// Search returns up to limit nearest points scoring at or above
	// threshold, best first. A threshold of 0 disables filtering.
	Search(ctx context.Context, collection string, vec []float32, limit int, threshold float32) ([]Hit, error)

	// Delete removes the point under id. Missing points are not an error.
	Delete(ctx context.Context, collection, id string) error

	// Health verifies backend connectivity.
	Health(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
