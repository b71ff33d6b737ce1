// Package seed implements the inventory seeding pipeline. It loads item
// records from a JSON file, builds the searchable summary for each item,
// embeds the summaries in batches, and upserts the results into both the
// catalog database and the vector index. This pipeline is invoked by the
// `stocktalk seed` CLI command.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/rowanv/stocktalk/internal/catalog"
	"github.com/rowanv/stocktalk/internal/search"
)

// Inventory is the catalog surface the pipeline writes to.
type Inventory interface {
	// Upsert inserts or replaces the given items by ID.
	Upsert(ctx context.Context, items []catalog.Item) error
}

// Config holds the configuration for the seeding pipeline.
type Config struct {
	// BatchSize is the number of item summaries embedded per request.
	// Defaults to 32 if zero.
	BatchSize int
}

// Pipeline orchestrates the load → summarise → embed → upsert flow for a
// set of inventory items.
type Pipeline struct {
	// embedder converts item summaries into dense vector embeddings.
	embedder search.Embedder

	// index persists the embedded items for semantic search.
	index search.VectorIndex

	// inventory persists the items as the system of record.
	inventory Inventory

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder search.Embedder, index search.VectorIndex, inventory Inventory, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("seed: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("seed: index must not be nil")
	}
	if inventory == nil {
		return nil, fmt.Errorf("seed: inventory must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	return &Pipeline{
		embedder:  embedder,
		index:     index,
		inventory: inventory,
		cfg:       cfg,
	}, nil
}

// LoadItems reads a JSON array of items from path. Items without an ID are
// assigned a fresh UUID so re-running the seed never collides; items with an
// ID keep it so re-seeding updates in place.
func LoadItems(path string) ([]catalog.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}

	var items []catalog.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("seed: parse %s: %w", path, err)
	}

	for i := range items {
		if items[i].Name == "" {
			return nil, fmt.Errorf("seed: item %d in %s has no name", i, path)
		}
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
	return items, nil
}

// Seed summarises, embeds, and stores all provided items. The catalog is
// written first so lexical search works even if the vector upsert fails
// midway. Progress is reported via the optional progress callback.
func (p *Pipeline) Seed(ctx context.Context, items []catalog.Item, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}
	if len(items) == 0 {
		return fmt.Errorf("seed: no items to seed")
	}

	for i := range items {
		items[i].Summary = catalog.BuildSummary(items[i])
	}

	if err := p.inventory.Upsert(ctx, items); err != nil {
		return fmt.Errorf("seed: catalog upsert failed: %w", err)
	}
	progress(fmt.Sprintf("stored %d items in the catalog", len(items)))

	for start := 0; start < len(items); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = it.Summary
		}

		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("seed: embedding batch %d–%d failed: %w", start, end-1, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("seed: embedder returned %d vectors for %d items", len(embeddings), len(batch))
		}

		if err := p.index.Upsert(ctx, batch, embeddings); err != nil {
			return fmt.Errorf("seed: vector upsert for batch %d–%d failed: %w", start, end-1, err)
		}
		progress(fmt.Sprintf("indexed items %d–%d of %d", start+1, end, len(items)))
	}

	return nil
}
