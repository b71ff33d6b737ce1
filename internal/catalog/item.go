// Package catalog provides the product inventory system-of-record for the
// stocktalk agent: the Item domain type and a SQLite-backed store supporting
// document counts and case-insensitive lexical search. Embeddings live in the
// vector index, not here — this store answers "what do we stock" queries and
// backs the lexical fallback when semantic search finds nothing.
package catalog

import "strings"

// Item is a single product record. Items are written by the one-shot seeding
// pipeline and read-only at serving time.
type Item struct {
	// ID is the unique identifier shared with the vector index.
	ID string `json:"id"`

	// Name is the display name (e.g. "Aurora 3-Seater Sofa").
	Name string `json:"name"`

	// Description is the marketing description text.
	Description string `json:"description"`

	// Brand is the manufacturer or house brand label.
	Brand string `json:"brand,omitempty"`

	// Categories are the taxonomy labels (e.g. "sofas", "living room").
	Categories []string `json:"categories,omitempty"`

	// Price is the full list price.
	Price float64 `json:"price"`

	// SalePrice is the discounted price; zero when the item is not on sale.
	SalePrice float64 `json:"salePrice,omitempty"`

	// Notes is free-text operational notes (stock caveats, delivery info).
	Notes string `json:"notes,omitempty"`

	// Summary is the derived searchable text embedded into the vector index
	// and matched by the lexical fallback.
	Summary string `json:"summary,omitempty"`
}

// BuildSummary derives the searchable summary text for an item. The same
// text is embedded at seed time and scanned by the lexical fallback, so both
// retrieval paths see an identical view of the item.
func BuildSummary(it Item) string {
	var sb strings.Builder
	sb.WriteString(it.Name)
	if it.Brand != "" {
		sb.WriteString(" by ")
		sb.WriteString(it.Brand)
	}
	if len(it.Categories) > 0 {
		sb.WriteString(". Categories: ")
		sb.WriteString(strings.Join(it.Categories, ", "))
	}
	if it.Description != "" {
		sb.WriteString(". ")
		sb.WriteString(it.Description)
	}
	if it.Notes != "" {
		sb.WriteString(" ")
		sb.WriteString(it.Notes)
	}
	return strings.TrimSpace(sb.String())
}
