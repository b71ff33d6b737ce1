// Package search implements hybrid retrieval over the product inventory:
// semantic similarity search against the vector index, falling back to
// lexical substring search when the semantic path yields nothing. Results are
// returned in a uniform envelope annotating which strategy produced them;
// failures become error envelopes rather than Go errors so the agent's tool
// layer can always hand the model something to reason about.
package search

import (
	"context"

	"github.com/rowanv/stocktalk/internal/catalog"
)

// SearchType identifies which retrieval path produced an envelope.
type SearchType string

const (
	// SearchTypeVector marks results produced by semantic similarity search.
	SearchTypeVector SearchType = "vector"
	// SearchTypeText marks results produced by the lexical fallback.
	SearchTypeText SearchType = "text"
)

// ScoredItem is an inventory item with its similarity score. Score is zero
// for lexical results — substring matching assigns no relevance ordering.
type ScoredItem struct {
	catalog.Item

	// Score is the cosine similarity assigned by the vector index.
	Score float32 `json:"score,omitempty"`
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the similarity-search side of the inventory.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Upsert stores items with their pre-computed embeddings.
	// The embeddings slice must be parallel to items.
	Upsert(ctx context.Context, items []catalog.Item, embeddings [][]float32) error

	// Search returns the top-k most similar items for the query embedding,
	// ordered by descending score.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredItem, error)

	// Close releases any resources held by the index.
	Close() error
}

// Inventory is the catalog surface the retriever needs: a document count for
// the empty-inventory check and lexical search for the fallback path.
// *catalog.Store satisfies it; tests inject fakes.
type Inventory interface {
	// Count returns the number of items in the inventory.
	Count(ctx context.Context) (int, error)

	// Lexical returns up to k items matching query by case-insensitive
	// substring across the searchable text fields.
	Lexical(ctx context.Context, query string, k int) ([]catalog.Item, error)
}
