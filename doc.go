// Package nexus provides a knowledge-graph-backed retrieval engine.
//
// The engine resolves and deduplicates entities extracted from heterogeneous
// communication data, maintains a typed property graph linking people,
// organizations, messages, tasks and events, and answers natural-language
// queries by combining vector similarity search with multi-hop graph
// expansion.
//
// # Core Concepts
//
// The library is organized around several key components:
//
//   - schema: a runtime registry of node and relationship types that every
//     graph mutation is validated against
//   - graph: a typed adapter over a labeled-property graph store (Neo4j)
//   - vector: a collection-scoped nearest-neighbor store adapter (Qdrant)
//   - resolve: the entity resolution engine deciding whether an incoming
//     record is the same real-world entity as one already stored
//   - traverse: breadth-first multi-hop expansion under hop and fan-out
//     budgets
//   - retrieval: the hybrid pipeline fusing vector hits with graph context
//   - cache: a two-tier (in-process + Redis) cache with write invalidation
//   - archive: age-based cold-storage offload of stale nodes
//
// # Getting Started
//
// Construct an Engine from configuration and an embedding function:
//
//	cfg := nexus.DefaultConfig()
//	engine, err := nexus.Open(ctx, cfg, embedder)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close(ctx)
//
//	result, err := engine.Retrieval.RetrieveWithContext(ctx, retrieval.Query{
//		Text:    "invoices from Acme",
//		MaxHops: 2,
//	})
//
// # Error Handling
//
// All failures are reported as *nexus.Error values carrying a stable Kind
// (validation, not_found, unavailable, timeout) so callers can distinguish
// bad input, missing data, backend outages, and deadline overruns:
//
//	if nexus.ErrorKind(err) == nexus.KindUnavailable {
//		// safe to retry with backoff
//	}
//
// The engine performs no automatic retries: idempotency of partially
// applied multi-step operations, such as entity merges, is the caller's
// explicit concern.
package nexus
