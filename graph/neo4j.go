package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
)

// Config contains connection options for the Neo4j store.
type Config struct {
	// URI is the connection URI, e.g. "bolt://host:7687" or
	// "bolt+s://host:7687" for TLS.
	URI string

	// Username and Password authenticate against the database.
	Username string
	Password string

	// Database name to connect to. Empty string uses the default database.
	Database string

	// MaxConnectionPoolSize limits the number of pooled connections.
	// Zero or negative uses 50.
	MaxConnectionPoolSize int

	// ConnectTimeout is the maximum time to wait for connection
	// establishment. Zero uses 5s.
	ConnectTimeout time.Duration
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.URI == "" {
		return nexuserr.Configuration("graph.Config.Validate",
			fmt.Errorf("%w: URI cannot be empty", nexuserr.ErrInvalidConfig))
	}
	if c.Username == "" {
		return nexuserr.Configuration("graph.Config.Validate",
			fmt.Errorf("%w: username cannot be empty", nexuserr.ErrInvalidConfig))
	}
	return nil
}

func (c Config) poolSize() int {
	if c.MaxConnectionPoolSize <= 0 {
		return 50
	}
	return c.MaxConnectionPoolSize
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ConnectTimeout
}

// Neo4jStore implements Store against a Neo4j database. Every mutating call
// validates against the schema registry before issuing Cypher.
type Neo4jStore struct {
	config   Config
	registry *schema.Registry
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
}

// NewNeo4jStore creates an unconnected store. Call Connect before use.
func NewNeo4jStore(config Config, registry *schema.Registry, logger *slog.Logger) (*Neo4jStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = schema.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jStore{
		config:   config,
		registry: registry,
		logger:   logger,
	}, nil
}

// Connect establishes the driver connection with exponential backoff.
func (s *Neo4jStore) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(s.config.Username, s.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = s.config.poolSize()
		config.ConnectionAcquisitionTimeout = s.config.connectTimeout()
	}

	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(s.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				s.driver = driver
				s.logger.Info("connected to graph store", "uri", s.config.URI)
				return nil
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			return nexuserr.Unavailable("Neo4jStore.Connect", ctx.Err())
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > s.config.connectTimeout() {
			delay = s.config.connectTimeout()
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nexuserr.Unavailable("Neo4jStore.Connect", ctx.Err())
		}
	}

	return nexuserr.Unavailable("Neo4jStore.Connect",
		fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr))
}

// Close releases the driver connections.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	if err := s.driver.Close(ctx); err != nil {
		return nexuserr.Internal("Neo4jStore.Close", err)
	}
	s.driver = nil
	return nil
}

// Health verifies backend connectivity with a bounded timeout.
func (s *Neo4jStore) Health(ctx context.Context) error {
	if s.driver == nil {
		return nexuserr.Unavailable("Neo4jStore.Health",
			fmt.Errorf("%w: driver not connected", nexuserr.ErrStoreUnavailable))
	}
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.driver.VerifyConnectivity(healthCtx); err != nil {
		return nexuserr.Unavailable("Neo4jStore.Health", err)
	}
	return nil
}

// InitializeSchema creates the registry's constraints and indexes.
func (s *Neo4jStore) InitializeSchema(ctx context.Context) error {
	stmts := append(s.registry.ConstraintStatements(), s.registry.IndexStatements()...)
	session := s.session(ctx)
	defer session.Close(ctx)

	for _, stmt := range stmts {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		})
		if err != nil {
			return s.wrapErr("Neo4jStore.InitializeSchema", err)
		}
	}
	s.logger.Info("graph schema initialized", "statements", len(stmts))
	return nil
}

// CreateNode inserts a new node. A missing id is generated; a missing
// created_at is stamped.
func (s *Neo4jStore) CreateNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	const op = "Neo4jStore.CreateNode"
	props = withDefaults(props)
	if err := s.registry.ValidateNode(label, props); err != nil {
		return nil, nexuserr.Validation(op, err)
	}

	cypher := fmt.Sprintf("CREATE (n:%s) SET n = $props RETURN n", label)
	node, err := s.writeNode(ctx, op, cypher, map[string]any{"props": props})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// MergeNode upserts a node by its id property.
func (s *Neo4jStore) MergeNode(ctx context.Context, label string, props map[string]any) (*Node, error) {
	const op = "Neo4jStore.MergeNode"
	props = withDefaults(props)
	if err := s.registry.ValidateNode(label, props); err != nil {
		return nil, nexuserr.Validation(op, err)
	}

	cypher := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props RETURN n", label)
	params := map[string]any{"id": props["id"], "props": props}
	return s.writeNode(ctx, op, cypher, params)
}

// GetNode returns the first matching node or a not_found error.
func (s *Neo4jStore) GetNode(ctx context.Context, label string, match map[string]any) (*Node, error) {
	const op = "Neo4jStore.GetNode"
	if !s.registry.IsNodeType(label) {
		return nil, nexuserr.Validation(op, fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}

	where, params := matchClause("n", match)
	cypher := fmt.Sprintf("MATCH (n:%s) %s RETURN n LIMIT 1", label, where)

	nodes, err := s.readNodes(ctx, op, cypher, params)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nexuserr.NotFound(op, nexuserr.ErrNodeNotFound).
			WithContext(map[string]any{"label": label, "match": match})
	}
	return nodes[0], nil
}

// FindNodes returns up to limit matching nodes.
func (s *Neo4jStore) FindNodes(ctx context.Context, label string, match map[string]any, limit int) ([]*Node, error) {
	const op = "Neo4jStore.FindNodes"
	if !s.registry.IsNodeType(label) {
		return nil, nexuserr.Validation(op, fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}

	where, params := matchClause("n", match)
	cypher := fmt.Sprintf("MATCH (n:%s) %s RETURN n", label, where)
	if limit > 0 {
		cypher += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.readNodes(ctx, op, cypher, params)
}

// UpdateNode sets update properties on every matching node.
func (s *Neo4jStore) UpdateNode(ctx context.Context, label string, match, update map[string]any) ([]*Node, error) {
	const op = "Neo4jStore.UpdateNode"
	if err := s.registry.ValidateNode(label, update); err != nil {
		return nil, nexuserr.Validation(op, err)
	}

	where, params := matchClause("n", match)
	params["update"] = update
	cypher := fmt.Sprintf("MATCH (n:%s) %s SET n += $update RETURN n", label, where)

	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return nodesFromRecords(records, "n"), nil
	})
	if err != nil {
		return nil, s.wrapErr(op, err)
	}
	return result.([]*Node), nil
}

// DeleteNode removes matching nodes with cascading detach.
func (s *Neo4jStore) DeleteNode(ctx context.Context, label string, match map[string]any) error {
	const op = "Neo4jStore.DeleteNode"
	if !s.registry.IsNodeType(label) {
		return nexuserr.Validation(op, fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}

	where, params := matchClause("n", match)
	cypher := fmt.Sprintf("MATCH (n:%s) %s DETACH DELETE n", label, where)
	return s.write(ctx, op, cypher, params)
}

// CreateRelationship creates a typed edge between two matched nodes.
func (s *Neo4jStore) CreateRelationship(ctx context.Context, spec RelationshipSpec) error {
	return s.relationship(ctx, "Neo4jStore.CreateRelationship", spec, "CREATE")
}

// MergeRelationship upserts a typed edge between two matched nodes.
func (s *Neo4jStore) MergeRelationship(ctx context.Context, spec RelationshipSpec) error {
	return s.relationship(ctx, "Neo4jStore.MergeRelationship", spec, "MERGE")
}

func (s *Neo4jStore) relationship(ctx context.Context, op string, spec RelationshipSpec, verb string) error {
	if err := s.registry.ValidateRelationship(spec.Type, spec.FromLabel, spec.ToLabel, spec.Props); err != nil {
		return nexuserr.Validation(op, err)
	}

	fromWhere, params := matchClauseWithPrefix("a", "f", spec.FromMatch)
	toWhere, toParams := matchClauseWithPrefix("b", "t", spec.ToMatch)
	for k, v := range toParams {
		params[k] = v
	}
	props := spec.Props
	if props == nil {
		props = map[string]any{}
	}
	params["rel_props"] = props

	cypher := fmt.Sprintf(
		"MATCH (a:%s), (b:%s) WHERE %s AND %s %s (a)-[r:%s]->(b) SET r += $rel_props",
		spec.FromLabel, spec.ToLabel, fromWhere, toWhere, verb, spec.Type)

	return s.write(ctx, op, cypher, params)
}

// MergeRelationshipByID upserts an edge between two nodes addressed by ID.
// The relationship type must be known, but endpoint labels are not checked;
// the edge being re-pointed was validated when first created.
func (s *Neo4jStore) MergeRelationshipByID(ctx context.Context, fromID, relType, toID string, props map[string]any) error {
	const op = "Neo4jStore.MergeRelationshipByID"
	if !s.registry.IsRelationshipType(relType) {
		return nexuserr.Validation(op, fmt.Errorf("%w: %q", nexuserr.ErrUnknownRelationshipType, relType))
	}
	if props == nil {
		props = map[string]any{}
	}
	cypher := fmt.Sprintf(
		"MATCH (a {id: $from}), (b {id: $to}) MERGE (a)-[r:%s]->(b) SET r += $rel_props", relType)
	return s.write(ctx, op, cypher, map[string]any{
		"from": fromID, "to": toID, "rel_props": props,
	})
}

// RelationshipExists reports whether the edge exists in either direction.
func (s *Neo4jStore) RelationshipExists(ctx context.Context, fromID, relType, toID string) (bool, error) {
	const op = "Neo4jStore.RelationshipExists"
	cypher := fmt.Sprintf(
		"MATCH (a {id: $from})-[r:%s]-(b {id: $to}) RETURN count(r) > 0 AS present", relType)
	rows, err := s.read(ctx, op, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	present, _ := rows[0]["present"].(bool)
	return present, nil
}

// IncidentRelationships returns every edge touching the node.
func (s *Neo4jStore) IncidentRelationships(ctx context.Context, nodeID string) ([]*Relationship, error) {
	const op = "Neo4jStore.IncidentRelationships"
	cypher := `MATCH (a {id: $id})-[r]-(b)
		RETURN type(r) AS rel_type, startNode(r).id AS source_id, endNode(r).id AS target_id, properties(r) AS props`
	rows, err := s.read(ctx, op, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	rels := make([]*Relationship, 0, len(rows))
	for _, row := range rows {
		rels = append(rels, relationshipFromRow(row))
	}
	return rels, nil
}

// DeleteRelationship removes a specific directed edge.
func (s *Neo4jStore) DeleteRelationship(ctx context.Context, fromID, relType, toID string) error {
	const op = "Neo4jStore.DeleteRelationship"
	cypher := fmt.Sprintf(
		"MATCH (a {id: $from})-[r:%s]->(b {id: $to}) DELETE r", relType)
	return s.write(ctx, op, cypher, map[string]any{"from": fromID, "to": toID})
}

// NeighborIDs returns the distinct directly connected node IDs.
func (s *Neo4jStore) NeighborIDs(ctx context.Context, nodeID string) ([]string, error) {
	const op = "Neo4jStore.NeighborIDs"
	cypher := `MATCH (a {id: $id})--(b)
		WHERE b.id IS NOT NULL
		RETURN DISTINCT b.id AS id`
	rows, err := s.read(ctx, op, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Expand performs a one-hop filtered expansion of the frontier.
func (s *Neo4jStore) Expand(ctx context.Context, nodeIDs []string, opts ExpandOptions) ([]Expansion, error) {
	const op = "Neo4jStore.Expand"
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	var pattern string
	switch opts.Direction {
	case Outgoing:
		pattern = "(a)-[r]->(b)"
	case Incoming:
		pattern = "(a)<-[r]-(b)"
	default:
		pattern = "(a)-[r]-(b)"
	}

	cypher := fmt.Sprintf(`MATCH %s
		WHERE a.id IN $ids AND b.id IS NOT NULL`, pattern)
	params := map[string]any{"ids": nodeIDs}
	if len(opts.RelationshipTypes) > 0 {
		cypher += " AND type(r) IN $rel_types"
		params["rel_types"] = opts.RelationshipTypes
	}
	if len(opts.NodeTypes) > 0 {
		cypher += " AND any(l IN labels(b) WHERE l IN $node_types)"
		params["node_types"] = opts.NodeTypes
	}
	cypher += `
		RETURN a.id AS source, type(r) AS rel_type,
			startNode(r).id AS source_id, endNode(r).id AS target_id,
			properties(r) AS rel_props, labels(b) AS labels, properties(b) AS props`

	rows, err := s.read(ctx, op, cypher, params)
	if err != nil {
		return nil, err
	}

	expansions := make([]Expansion, 0, len(rows))
	for _, row := range rows {
		source, _ := row["source"].(string)
		rel := relationshipFromRow(map[string]any{
			"rel_type":  row["rel_type"],
			"source_id": row["source_id"],
			"target_id": row["target_id"],
			"props":     row["rel_props"],
		})
		expansions = append(expansions, Expansion{
			SourceID:     source,
			Node:         nodeFromRow(row["labels"], row["props"]),
			Relationship: rel,
		})
	}
	return expansions, nil
}

// NodesSharingNeighbors returns non-merged nodes of the label sharing at
// least minShared neighbors with the given set, ordered by overlap.
func (s *Neo4jStore) NodesSharingNeighbors(ctx context.Context, label string, neighborIDs []string, minShared int) ([]*Node, error) {
	const op = "Neo4jStore.NodesSharingNeighbors"
	if !s.registry.IsNodeType(label) {
		return nil, nexuserr.Validation(op, fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}
	if len(neighborIDs) == 0 {
		return nil, nil
	}

	cypher := fmt.Sprintf(`MATCH (c:%s)--(n)
		WHERE n.id IN $neighbor_ids AND (c.merged IS NULL OR c.merged = false)
		WITH c, count(DISTINCT n.id) AS shared
		WHERE shared >= $min_shared
		RETURN labels(c) AS labels, properties(c) AS props
		ORDER BY shared DESC`, label)
	rows, err := s.read(ctx, op, cypher, map[string]any{
		"neighbor_ids": neighborIDs,
		"min_shared":   minShared,
	})
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, nodeFromRow(row["labels"], row["props"]))
	}
	return nodes, nil
}

// ShortestPath returns the shortest undirected path within maxHops, or nil.
func (s *Neo4jStore) ShortestPath(ctx context.Context, fromID, toID string, maxHops int) (*Subgraph, error) {
	const op = "Neo4jStore.ShortestPath"
	cypher := fmt.Sprintf(`MATCH (a {id: $from}), (b {id: $to}),
			p = shortestPath((a)-[*..%d]-(b))
		RETURN nodes(p) AS ns, relationships(p) AS rs`, maxHops)
	rows, err := s.read(ctx, op, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return subgraphFromPathRow(rows[0])
}

// FindOlderThan returns non-archived, non-merged nodes older than cutoff.
func (s *Neo4jStore) FindOlderThan(ctx context.Context, label, timestampProp string, cutoff time.Time, limit int) ([]*Node, error) {
	const op = "Neo4jStore.FindOlderThan"
	if !s.registry.IsNodeType(label) {
		return nil, nexuserr.Validation(op, fmt.Errorf("%w: %q", nexuserr.ErrUnknownNodeType, label))
	}

	cypher := fmt.Sprintf(`MATCH (n:%s)
		WHERE n.%s < $cutoff
			AND (n.merged IS NULL OR n.merged = false)
			AND (n.status IS NULL OR n.status <> $archived)
		RETURN n`, label, timestampProp)
	if limit > 0 {
		cypher += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.readNodes(ctx, op, cypher, map[string]any{
		"cutoff":   cutoff.UTC().Format(time.RFC3339),
		"archived": schema.StatusArchived,
	})
}

// Touch records an access on the node.
func (s *Neo4jStore) Touch(ctx context.Context, nodeID string) error {
	const op = "Neo4jStore.Touch"
	cypher := `MATCH (n {id: $id})
		SET n.last_accessed_at = $now, n.access_count = coalesce(n.access_count, 0) + 1`
	return s.write(ctx, op, cypher, map[string]any{
		"id":  nodeID,
		"now": time.Now().UTC().Format(time.RFC3339),
	})
}

// RunQuery executes a raw Cypher query.
func (s *Neo4jStore) RunQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	const op = "Neo4jStore.RunQuery"
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return rowsFromRecords(records), nil
	})
	if err != nil {
		return nil, s.wrapErr(op, err)
	}
	return result.([]map[string]any), nil
}

// TraverseFromNodes returns the subgraph reachable from the seeds within
// maxHops.
func (s *Neo4jStore) TraverseFromNodes(ctx context.Context, nodeIDs []string, maxHops int) (*Subgraph, error) {
	const op = "Neo4jStore.TraverseFromNodes"
	if len(nodeIDs) == 0 {
		return &Subgraph{}, nil
	}
	params := map[string]any{"ids": nodeIDs}

	nodeCypher := fmt.Sprintf(`MATCH (n) WHERE n.id IN $ids
		MATCH p = (n)-[*0..%d]-(m)
		UNWIND nodes(p) AS x
		RETURN DISTINCT labels(x) AS labels, properties(x) AS props`, maxHops)
	nodeRows, err := s.read(ctx, op, nodeCypher, params)
	if err != nil {
		return nil, err
	}

	sub := &Subgraph{}
	seenNodes := make(map[string]bool)
	for _, row := range nodeRows {
		node := nodeFromRow(row["labels"], row["props"])
		if id := node.ID(); id != "" && !seenNodes[id] {
			seenNodes[id] = true
			sub.Nodes = append(sub.Nodes, node)
		}
	}

	if maxHops > 0 {
		relCypher := fmt.Sprintf(`MATCH (n) WHERE n.id IN $ids
			MATCH (n)-[rels*1..%d]-(m)
			UNWIND rels AS r
			RETURN DISTINCT type(r) AS rel_type, startNode(r).id AS source_id,
				endNode(r).id AS target_id, properties(r) AS props`, maxHops)
		relRows, err := s.read(ctx, op, relCypher, params)
		if err != nil {
			return nil, err
		}
		seenRels := make(map[string]bool)
		for _, row := range relRows {
			rel := relationshipFromRow(row)
			key := rel.SourceID + "|" + rel.Type + "|" + rel.TargetID
			if !seenRels[key] {
				seenRels[key] = true
				sub.Relationships = append(sub.Relationships, rel)
			}
		}
	}

	return sub, nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
	})
}

func (s *Neo4jStore) write(ctx context.Context, op, cypher string, params map[string]any) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, cypher, params)
		return nil, err
	})
	if err != nil {
		return s.wrapErr(op, err)
	}
	return nil
}

func (s *Neo4jStore) writeNode(ctx context.Context, op, cypher string, params map[string]any) (*Node, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		value, _ := record.Get("n")
		return nodeFromValue(value), nil
	})
	if err != nil {
		return nil, s.wrapErr(op, err)
	}
	return result.(*Node), nil
}

func (s *Neo4jStore) read(ctx context.Context, op, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return rowsFromRecords(records), nil
	})
	if err != nil {
		return nil, s.wrapErr(op, err)
	}
	return result.([]map[string]any), nil
}

func (s *Neo4jStore) readNodes(ctx context.Context, op, cypher string, params map[string]any) ([]*Node, error) {
	rows, err := s.read(ctx, op, cypher, params)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(rows))
	for _, row := range rows {
		if node := nodeFromValue(row["n"]); node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (s *Neo4jStore) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return nexuserr.Timeout(op, err)
	case neo4j.IsConnectivityError(err):
		return nexuserr.Unavailable(op, err)
	default:
		return nexuserr.Internal(op, err)
	}
}

// withDefaults fills in a generated id and created_at stamp when absent.
func withDefaults(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+2)
	for k, v := range props {
		out[k] = v
	}
	if id, ok := out["id"].(string); !ok || id == "" {
		out["id"] = uuid.New().String()
	}
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	return out
}

// matchClause builds "WHERE n.k = $m_k AND ..." with deterministic ordering.
func matchClause(alias string, match map[string]any) (string, map[string]any) {
	where, params := matchClauseWithPrefix(alias, "m", match)
	return "WHERE " + where, params
}

func matchClauseWithPrefix(alias, prefix string, match map[string]any) (string, map[string]any) {
	params := make(map[string]any, len(match))
	if len(match) == 0 {
		return "true", params
	}
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clause := ""
	for i, k := range keys {
		param := prefix + "_" + k
		if i > 0 {
			clause += " AND "
		}
		clause += fmt.Sprintf("%s.%s = $%s", alias, k, param)
		params[param] = match[k]
	}
	return clause, params
}

func rowsFromRecords(records []*neo4j.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func nodesFromRecords(records []*neo4j.Record, key string) []*Node {
	nodes := make([]*Node, 0, len(records))
	for _, record := range records {
		if value, ok := record.Get(key); ok {
			if node := nodeFromValue(value); node != nil {
				nodes = append(nodes, node)
			}
		}
	}
	return nodes
}

func nodeFromValue(value any) *Node {
	n, ok := value.(neo4j.Node)
	if !ok {
		return nil
	}
	label := ""
	if len(n.Labels) > 0 {
		label = n.Labels[0]
	}
	return &Node{Label: label, Props: n.Props}
}

func nodeFromRow(labels, props any) *Node {
	node := &Node{Props: map[string]any{}}
	if ls, ok := labels.([]any); ok && len(ls) > 0 {
		if l, ok := ls[0].(string); ok {
			node.Label = l
		}
	}
	if ps, ok := props.(map[string]any); ok {
		node.Props = ps
	}
	return node
}

func relationshipFromRow(row map[string]any) *Relationship {
	rel := &Relationship{}
	rel.Type, _ = row["rel_type"].(string)
	rel.SourceID, _ = row["source_id"].(string)
	rel.TargetID, _ = row["target_id"].(string)
	if props, ok := row["props"].(map[string]any); ok {
		rel.Props = props
	}
	return rel
}

func subgraphFromPathRow(row map[string]any) (*Subgraph, error) {
	sub := &Subgraph{}

	elementIDs := make(map[string]string)
	if ns, ok := row["ns"].([]any); ok {
		for _, v := range ns {
			if n, ok := v.(neo4j.Node); ok {
				node := &Node{Props: n.Props}
				if len(n.Labels) > 0 {
					node.Label = n.Labels[0]
				}
				elementIDs[n.ElementId] = node.ID()
				sub.Nodes = append(sub.Nodes, node)
			}
		}
	}
	if rs, ok := row["rs"].([]any); ok {
		for _, v := range rs {
			if r, ok := v.(neo4j.Relationship); ok {
				sub.Relationships = append(sub.Relationships, &Relationship{
					Type:     r.Type,
					SourceID: elementIDs[r.StartElementId],
					TargetID: elementIDs[r.EndElementId],
					Props:    r.Props,
				})
			}
		}
	}
	return sub, nil
}
