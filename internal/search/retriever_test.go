package search

import (
	"context"
	"errors"
	"testing"

	"github.com/rowanv/stocktalk/internal/catalog"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder returns a fixed vector per input text, or a configured error.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeIndex returns configured scored items, or a configured error.
type fakeIndex struct {
	results []ScoredItem
	err     error
	gotTopK int
}

func (f *fakeIndex) Upsert(context.Context, []catalog.Item, [][]float32) error { return nil }

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK int) ([]ScoredItem, error) {
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeIndex) Close() error { return nil }

// fakeInventory returns configured counts and lexical results.
type fakeInventory struct {
	count      int
	countErr   error
	lexical    []catalog.Item
	lexicalErr error
	gotQuery   string
}

func (f *fakeInventory) Count(context.Context) (int, error) { return f.count, f.countErr }

func (f *fakeInventory) Lexical(_ context.Context, query string, _ int) ([]catalog.Item, error) {
	f.gotQuery = query
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return f.lexical, nil
}

// newTestRetriever wires a Retriever from the given fakes.
func newTestRetriever(t *testing.T, e Embedder, idx VectorIndex, inv Inventory) *Retriever {
	t.Helper()
	r, err := NewRetriever(e, idx, inv)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func Test_Retriever_EmptyInventoryEnvelope(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{}, &fakeIndex{}, &fakeInventory{count: 0})
	env := r.Search(context.Background(), "blue sofa", 5)

	if env.Error != "empty inventory" {
		t.Errorf("want empty inventory error, got %q", env.Error)
	}
	if env.Count != 0 || len(env.Results) != 0 {
		t.Errorf("want zero results, got count=%d len=%d", env.Count, len(env.Results))
	}
	if env.Query != "blue sofa" {
		t.Errorf("query not echoed: %q", env.Query)
	}
}

func Test_Retriever_VectorPath(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{results: []ScoredItem{
		{Item: catalog.Item{ID: "sofa-1", Name: "Aurora 3-Seater Sofa"}, Score: 0.92},
	}}
	r := newTestRetriever(t, &fakeEmbedder{}, idx, &fakeInventory{count: 3})

	env := r.Search(context.Background(), "cheap blue sofa", 5)

	if env.Error != "" {
		t.Fatalf("unexpected error envelope: %q (%s)", env.Error, env.Details)
	}
	if env.SearchType != SearchTypeVector {
		t.Errorf("want searchType vector, got %q", env.SearchType)
	}
	if env.Count != 1 || len(env.Results) != 1 {
		t.Errorf("count invariant violated: count=%d len=%d", env.Count, len(env.Results))
	}
	if env.Results[0].Name != "Aurora 3-Seater Sofa" {
		t.Errorf("unexpected result: %+v", env.Results[0])
	}
	if idx.gotTopK != 5 {
		t.Errorf("topK not propagated: got %d", idx.gotTopK)
	}
}

func Test_Retriever_LexicalFallback(t *testing.T) {
	t.Parallel()

	inv := &fakeInventory{
		count:   3,
		lexical: []catalog.Item{{ID: "lamp-1", Name: "Halo Floor Lamp"}},
	}
	r := newTestRetriever(t, &fakeEmbedder{}, &fakeIndex{}, inv)

	env := r.Search(context.Background(), "halo", 5)

	if env.SearchType != SearchTypeText {
		t.Errorf("want searchType text, got %q", env.SearchType)
	}
	if env.Count != 1 || env.Results[0].ID != "lamp-1" {
		t.Errorf("unexpected fallback results: %+v", env.Results)
	}
	if env.Results[0].Score != 0 {
		t.Errorf("lexical results carry no score, got %f", env.Results[0].Score)
	}
	if inv.gotQuery != "halo" {
		t.Errorf("lexical query not propagated: %q", inv.gotQuery)
	}
}

func Test_Retriever_FallbackEmptyIsStillText(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{}, &fakeIndex{}, &fakeInventory{count: 3})
	env := r.Search(context.Background(), "submarine", 5)

	if env.Error != "" {
		t.Fatalf("no-match is not an error: %q", env.Error)
	}
	if env.SearchType != SearchTypeText {
		t.Errorf("want searchType text, got %q", env.SearchType)
	}
	if env.Count != 0 || len(env.Results) != 0 {
		t.Errorf("want empty results, got count=%d len=%d", env.Count, len(env.Results))
	}
}

func Test_Retriever_EmbedderFailureBecomesEnvelope(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t,
		&fakeEmbedder{err: errors.New("embedding backend down")},
		&fakeIndex{}, &fakeInventory{count: 3})

	env := r.Search(context.Background(), "sofa", 5)

	if env.Error != "search failed" {
		t.Errorf("want search failed envelope, got %q", env.Error)
	}
	if env.Details == "" {
		t.Errorf("details must carry the underlying failure")
	}
	if env.Count != 0 {
		t.Errorf("error envelope count must be 0, got %d", env.Count)
	}
}

func Test_Retriever_IndexFailureBecomesEnvelope(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{},
		&fakeIndex{err: errors.New("qdrant unreachable")},
		&fakeInventory{count: 3})

	env := r.Search(context.Background(), "sofa", 5)
	if env.Error != "search failed" {
		t.Errorf("want search failed envelope, got %q", env.Error)
	}
}

func Test_Retriever_LexicalFailureBecomesEnvelope(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{}, &fakeIndex{},
		&fakeInventory{count: 3, lexicalErr: errors.New("db locked")})

	env := r.Search(context.Background(), "sofa", 5)
	if env.Error != "search failed" {
		t.Errorf("want search failed envelope, got %q", env.Error)
	}
}

func Test_Retriever_CountFailureBecomesEnvelope(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeEmbedder{}, &fakeIndex{},
		&fakeInventory{countErr: errors.New("db gone")})

	env := r.Search(context.Background(), "sofa", 5)
	if env.Error != "inventory unavailable" {
		t.Errorf("want inventory unavailable envelope, got %q", env.Error)
	}
}

func Test_Retriever_DefaultTopK(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{results: []ScoredItem{{Item: catalog.Item{ID: "x"}}}}
	r := newTestRetriever(t, &fakeEmbedder{}, idx, &fakeInventory{count: 1})

	_ = r.Search(context.Background(), "anything", 0)
	if idx.gotTopK != defaultTopK {
		t.Errorf("want default topK %d, got %d", defaultTopK, idx.gotTopK)
	}
}
