package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nexusgraph/nexus/nexuserr"
)

// Config contains connection options for the Qdrant store.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStore implements Store against a Qdrant instance over gRPC.
type QdrantStore struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewQdrantStore connects to Qdrant.
func NewQdrantStore(config Config, logger *slog.Logger) (*QdrantStore, error) {
	if config.Host == "" {
		return nil, nexuserr.Configuration("vector.NewQdrantStore",
			fmt.Errorf("%w: host cannot be empty", nexuserr.ErrInvalidConfig))
	}
	if config.Port <= 0 {
		config.Port = 6334
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, nexuserr.Unavailable("vector.NewQdrantStore", err)
	}

	logger.Info("connected to vector store", "host", config.Host, "port", config.Port)
	return &QdrantStore{client: client, logger: logger}, nil
}

// EnsureCollection creates the collection with cosine distance if missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	const op = "QdrantStore.EnsureCollection"

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nexuserr.Unavailable(op, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nexuserr.Unavailable(op, err)
	}
	s.logger.Info("created vector collection", "collection", collection, "dimension", dimension)
	return nil
}

// Upsert stores or replaces the point under id.
func (s *QdrantStore) Upsert(ctx context.Context, collection, id string, vec []float32, payload map[string]any) error {
	const op = "QdrantStore.Upsert"

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vec...),
	}
	if len(payload) > 0 {
		point.Payload = qdrant.NewValueMap(payload)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return nexuserr.Unavailable(op, err)
	}
	return nil
}

// Search returns the nearest points, best first.
func (s *QdrantStore) Search(ctx context.Context, collection string, vec []float32, limit int, threshold float32) ([]Hit, error) {
	const op = "QdrantStore.Search"

	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if threshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(threshold)
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, nexuserr.Unavailable(op, err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{
			ID:      p.GetId().GetUuid(),
			Score:   p.GetScore(),
			Payload: payloadToMap(p.GetPayload()),
		})
	}
	return hits, nil
}

// Delete removes the point under id.
func (s *QdrantStore) Delete(ctx context.Context, collection, id string) error {
	const op = "QdrantStore.Delete"

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		return nexuserr.Unavailable(op, err)
	}
	return nil
}

// Health verifies backend connectivity.
func (s *QdrantStore) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return nexuserr.Unavailable("QdrantStore.Health", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, 0, len(items))
		for _, item := range items {
			list = append(list, valueToAny(item))
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}

var _ Store = (*QdrantStore)(nil)
