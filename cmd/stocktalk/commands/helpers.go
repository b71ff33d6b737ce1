package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/tool"

	"github.com/rowanv/stocktalk/internal/catalog"
	"github.com/rowanv/stocktalk/internal/embedder"
	"github.com/rowanv/stocktalk/internal/history"
	"github.com/rowanv/stocktalk/internal/search"
	"github.com/rowanv/stocktalk/internal/tools"
)

// searchStack bundles the retrieval collaborators a command needs, plus the
// handles required for readiness probes and shutdown.
type searchStack struct {
	// Retriever performs hybrid item search.
	Retriever *search.Retriever
	// Embedder converts text to vectors, shared with the seed pipeline.
	Embedder search.Embedder
	// Catalog is the local inventory store.
	Catalog *catalog.Store
	// Index is the Qdrant-backed vector index.
	Index *search.QdrantIndex
}

// Close releases the stack's resources in reverse construction order.
func (s *searchStack) Close() {
	if s.Index != nil {
		_ = s.Index.Close()
	}
	if s.Catalog != nil {
		_ = s.Catalog.Close()
	}
}

// buildSearchStack opens the catalog database, the embedder, and the Qdrant
// index, and wires them into a hybrid Retriever.
func buildSearchStack(ctx context.Context, log *slog.Logger) (*searchStack, error) {
	if err := embedder.ValidateForSearch(log); err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	catalogPath := os.Getenv("STOCKTALK_CATALOG_DB")
	if catalogPath == "" {
		catalogPath, err = catalog.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
		}
	}
	cat, err := catalog.Open(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog at %s: %w", catalogPath, err)
	}
	log.Info("catalog opened", slog.String("path", catalogPath))

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "stocktalk-items")

	index, err := search.NewQdrantIndex(ctx, &search.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: collection,
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}
	log.Info("qdrant index ready",
		slog.String("host", qdrantHost),
		slog.Int("port", qdrantPort),
		slog.String("collection", collection),
	)

	retriever, err := search.NewRetriever(emb, index, cat)
	if err != nil {
		_ = index.Close()
		_ = cat.Close()
		return nil, err
	}

	return &searchStack{Retriever: retriever, Embedder: emb, Catalog: cat, Index: index}, nil
}

// buildTools constructs the list of inventory tools to register with the agent.
func buildTools(searcher tools.Searcher) []tool.InvokableTool {
	return []tool.InvokableTool{tools.NewLookupTool(searcher)}
}

// openHistory opens the conversation history store. STOCKTALK_HISTORY_DB
// overrides the default path (~/.stocktalk/history.db); set it to "disabled"
// to run stateless. A failure to open degrades to stateless with a warning
// rather than aborting the command.
func openHistory(log *slog.Logger) (history.Store, func()) {
	noop := func() {}

	dbPath := os.Getenv("STOCKTALK_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via STOCKTALK_HISTORY_DB=disabled")
		return nil, noop
	}
	if dbPath == "" {
		p, err := history.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, running stateless", slog.Any("error", err))
			return nil, noop
		}
		dbPath = p
	}

	hs, err := history.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, running stateless", slog.Any("error", err))
		return nil, noop
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// getEnvOrDefault returns the env var value or the fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as an int, or the fallback when unset
// or unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
