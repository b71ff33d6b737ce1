package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rowanv/stocktalk/internal/catalog"
	"github.com/rowanv/stocktalk/internal/search"
)

// fakeEmbedder returns one fixed-size vector per input text.
type fakeEmbedder struct {
	err     error
	batches [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeIndex records upserted items.
type fakeIndex struct {
	err   error
	items []catalog.Item
}

func (f *fakeIndex) Upsert(_ context.Context, items []catalog.Item, embeddings [][]float32) error {
	if f.err != nil {
		return f.err
	}
	if len(items) != len(embeddings) {
		return errors.New("fakeIndex: length mismatch")
	}
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeIndex) Search(context.Context, []float32, int) ([]search.ScoredItem, error) {
	return nil, errors.New("fakeIndex: search not supported")
}

func (f *fakeIndex) Close() error { return nil }

// openTestCatalog returns an in-memory catalog store.
func openTestCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("catalog.Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// writeItemsFile writes a JSON items file into a temp dir.
func writeItemsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write items file: %v", err)
	}
	return path
}

func Test_LoadItems_AssignsMissingIDs(t *testing.T) {
	t.Parallel()
	path := writeItemsFile(t, `[
		{"id": "sofa-1", "name": "Aurora Sofa"},
		{"name": "Halo Lamp"}
	]`)

	items, err := LoadItems(path)
	if err != nil {
		t.Fatalf("LoadItems() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("LoadItems() = %d items, want 2", len(items))
	}
	if items[0].ID != "sofa-1" {
		t.Errorf("existing ID was replaced: %q", items[0].ID)
	}
	if items[1].ID == "" {
		t.Error("missing ID was not assigned")
	}
}

func Test_LoadItems_RejectsNamelessItems(t *testing.T) {
	t.Parallel()
	path := writeItemsFile(t, `[{"id": "x", "description": "no name"}]`)

	if _, err := LoadItems(path); err == nil {
		t.Fatal("LoadItems() expected error for item without a name")
	}
}

func Test_LoadItems_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadItems(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("LoadItems() expected error for missing file")
	}
}

func Test_Seed_WritesCatalogAndIndex(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	cat := openTestCatalog(t)
	ctx := context.Background()

	p, err := NewPipeline(emb, idx, cat, nil)
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}

	items := []catalog.Item{
		{ID: "sofa-1", Name: "Aurora Sofa", Description: "blue velvet", Categories: []string{"seating"}},
		{ID: "lamp-1", Name: "Halo Lamp", Categories: []string{"lighting"}},
	}
	var progress []string
	if err := p.Seed(ctx, items, func(msg string) { progress = append(progress, msg) }); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	count, err := cat.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("catalog count = %d, want 2", count)
	}
	if len(idx.items) != 2 {
		t.Errorf("index received %d items, want 2", len(idx.items))
	}
	if len(progress) == 0 {
		t.Error("no progress reported")
	}

	// Summaries are built before embedding so the vectors reflect all fields.
	if len(emb.batches) != 1 {
		t.Fatalf("embedded %d batches, want 1", len(emb.batches))
	}
	if !strings.Contains(emb.batches[0][0], "blue velvet") {
		t.Errorf("embedded text missing description: %q", emb.batches[0][0])
	}
}

func Test_Seed_BatchesEmbedding(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	cat := openTestCatalog(t)

	p, err := NewPipeline(emb, idx, cat, &Config{BatchSize: 2})
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}

	items := []catalog.Item{
		{ID: "a", Name: "A"}, {ID: "b", Name: "B"},
		{ID: "c", Name: "C"}, {ID: "d", Name: "D"},
		{ID: "e", Name: "E"},
	}
	if err := p.Seed(context.Background(), items, nil); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	if len(emb.batches) != 3 {
		t.Errorf("embedded %d batches, want 3 (2+2+1)", len(emb.batches))
	}
	if len(idx.items) != 5 {
		t.Errorf("index received %d items, want 5", len(idx.items))
	}
}

func Test_Seed_EmbedFailureKeepsCatalog(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{err: errors.New("embedder down")}
	idx := &fakeIndex{}
	cat := openTestCatalog(t)
	ctx := context.Background()

	p, err := NewPipeline(emb, idx, cat, nil)
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}

	items := []catalog.Item{{ID: "sofa-1", Name: "Aurora Sofa"}}
	if err := p.Seed(ctx, items, nil); err == nil {
		t.Fatal("Seed() expected error when embedding fails")
	}

	// Lexical search data survives a vector pipeline failure.
	count, err := cat.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("catalog count = %d, want 1", count)
	}
}

func Test_Seed_EmptyInput(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(&fakeEmbedder{}, &fakeIndex{}, openTestCatalog(t), nil)
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}
	if err := p.Seed(context.Background(), nil, nil); err == nil {
		t.Fatal("Seed() expected error for empty input")
	}
}
