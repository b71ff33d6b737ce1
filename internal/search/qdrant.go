package search

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/rowanv/stocktalk/internal/catalog"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the item embeddings.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant instance using
// cosine similarity.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a new QdrantIndex, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorIndex.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (s *QdrantIndex) Client() *qdrant.Client { return s.client }

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or updates a batch of items with their embeddings.
// embeddings must be parallel to items — embeddings[i] is the vector for
// items[i]. The full item is kept in the point payload so search results
// need no secondary lookup.
func (s *QdrantIndex) Upsert(ctx context.Context, items []catalog.Item, embeddings [][]float32) error {
	if len(items) != len(embeddings) {
		return fmt.Errorf("qdrant: %d items but %d embeddings", len(items), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(items))
	for i, it := range items {
		cats := make([]any, 0, len(it.Categories))
		for _, c := range it.Categories {
			cats = append(cats, c)
		}
		payload := map[string]any{
			"name":        it.Name,
			"description": it.Description,
			"brand":       it.Brand,
			"categories":  cats,
			"price":       it.Price,
			"sale_price":  it.SalePrice,
			"notes":       it.Notes,
			"summary":     it.Summary,
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(it.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results
// ordered by descending score.
func (s *QdrantIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredItem, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	items := make([]ScoredItem, 0, len(results))
	for _, r := range results {
		items = append(items, ScoredItem{
			Item:  itemFromPayload(r.Id.GetUuid(), r.Payload),
			Score: r.Score,
		})
	}

	return items, nil
}

// Delete removes items from the collection by their IDs.
func (s *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// itemFromPayload rebuilds a catalog.Item from a Qdrant point payload.
func itemFromPayload(id string, p map[string]*qdrant.Value) catalog.Item {
	it := catalog.Item{ID: id}
	if p == nil {
		return it
	}
	if v, ok := p["name"]; ok {
		it.Name = v.GetStringValue()
	}
	if v, ok := p["description"]; ok {
		it.Description = v.GetStringValue()
	}
	if v, ok := p["brand"]; ok {
		it.Brand = v.GetStringValue()
	}
	if v, ok := p["categories"]; ok {
		for _, lv := range v.GetListValue().GetValues() {
			it.Categories = append(it.Categories, lv.GetStringValue())
		}
	}
	if v, ok := p["price"]; ok {
		it.Price = v.GetDoubleValue()
	}
	if v, ok := p["sale_price"]; ok {
		it.SalePrice = v.GetDoubleValue()
	}
	if v, ok := p["notes"]; ok {
		it.Notes = v.GetStringValue()
	}
	if v, ok := p["summary"]; ok {
		it.Summary = v.GetStringValue()
	}
	return it
}
