package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rowanv/stocktalk/internal/logging"
	"github.com/rowanv/stocktalk/internal/seed"
)

// NewSeedCmd constructs the `stocktalk seed` command, which loads a catalog
// file and populates both the local inventory database and the Qdrant vector
// index.
func NewSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the inventory catalog and vector index from a JSON file",
		Long: `Load furniture items from a JSON file and index them for search.

Each item is written to the local catalog database (used for substring
fallback search) and embedded into the Qdrant vector index (used for
semantic search). Items without an ID are assigned one, so the same file can
be re-seeded safely: items keep their IDs and are updated in place.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: stocktalk-items)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  stocktalk seed --file catalog.json
  EMBEDDING_PROVIDER=openai stocktalk seed --file catalog.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if file == "" {
				return fmt.Errorf("seed: --file is required")
			}

			items, err := seed.LoadItems(file)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			log.Info("seed: catalog file loaded",
				slog.String("path", file),
				slog.Int("items", len(items)),
			)

			stack, err := buildSearchStack(ctx, log)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			defer stack.Close()

			pipeline, err := seed.NewPipeline(stack.Embedder, stack.Index, stack.Catalog, nil)
			if err != nil {
				return fmt.Errorf("seed: failed to create pipeline: %w", err)
			}

			if err := pipeline.Seed(ctx, items, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("seed: pipeline failed: %w", err)
			}

			log.Info("seed: complete", slog.Int("items", len(items)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSON catalog file to seed from")

	return cmd
}
