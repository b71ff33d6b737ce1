package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rowanv/stocktalk/internal/logging"
)

// defaultTopK is the result-count bound used when the caller passes 0.
const defaultTopK = 10

// Retriever performs hybrid retrieval: embed the query, search the vector
// index, and fall back to lexical matching on an empty semantic result set.
//
// Search never returns a Go error. The agent feeds envelopes back into the
// model as opaque tool output, so a thrown error would abort the whole
// conversation turn instead of letting the model report "no results".
type Retriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// index performs the semantic similarity search.
	index VectorIndex

	// inventory provides the document count and the lexical fallback.
	inventory Inventory
}

// NewRetriever constructs a Retriever from its three collaborators.
func NewRetriever(embedder Embedder, index VectorIndex, inventory Inventory) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("search: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("search: index must not be nil")
	}
	if inventory == nil {
		return nil, fmt.Errorf("search: inventory must not be nil")
	}
	return &Retriever{embedder: embedder, index: index, inventory: inventory}, nil
}

// Search runs the hybrid retrieval strategy for query, bounded to topK
// results (defaultTopK when topK <= 0). The returned envelope's SearchType
// reflects the path that actually produced the results.
func (r *Retriever) Search(ctx context.Context, query string, topK int) *Envelope {
	if topK <= 0 {
		topK = defaultTopK
	}
	log := logging.FromContext(ctx)

	n, err := r.inventory.Count(ctx)
	if err != nil {
		log.Error("search: inventory count failed", slog.Any("error", err))
		return newErrorEnvelope(query, "inventory unavailable", err.Error())
	}
	if n == 0 {
		return newErrorEnvelope(query, "empty inventory", "no items are currently stocked")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		log.Error("search: query embedding failed", slog.Any("error", err))
		return newErrorEnvelope(query, "search failed", err.Error())
	}
	if len(embeddings) == 0 {
		return newErrorEnvelope(query, "search failed", "embedder returned no vector for query")
	}

	scored, err := r.index.Search(ctx, embeddings[0], topK)
	if err != nil {
		log.Error("search: vector search failed", slog.Any("error", err))
		return newErrorEnvelope(query, "search failed", err.Error())
	}
	if len(scored) > 0 {
		return newResultEnvelope(query, SearchTypeVector, scored)
	}

	// Semantic search found nothing relevant — degrade to substring matching.
	log.Info("search: vector search empty, falling back to lexical",
		slog.String("query", query),
		slog.Int("top_k", topK),
	)
	items, err := r.inventory.Lexical(ctx, query, topK)
	if err != nil {
		log.Error("search: lexical fallback failed", slog.Any("error", err))
		return newErrorEnvelope(query, "search failed", err.Error())
	}

	results := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		results = append(results, ScoredItem{Item: it})
	}
	return newResultEnvelope(query, SearchTypeText, results)
}
