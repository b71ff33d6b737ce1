package catalog

import (
	"context"
	"strings"
	"testing"
)

// openTestStore opens an in-memory Store for use in tests.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedItems inserts a small fixture inventory.
func seedItems(t *testing.T, s *Store) {
	t.Helper()
	items := []Item{
		{
			ID: "sofa-1", Name: "Aurora 3-Seater Sofa", Brand: "Nordica",
			Description: "A deep blue velvet sofa with oak legs.",
			Categories:  []string{"sofas", "living room"},
			Price:       899, SalePrice: 649,
		},
		{
			ID: "lamp-1", Name: "Halo Floor Lamp", Brand: "Lumen&Co",
			Description: "Dimmable brass floor lamp.",
			Categories:  []string{"lighting"},
			Price:       129,
		},
		{
			ID: "table-1", Name: "Plateau Dining Table", Brand: "Nordica",
			Description: "Extendable walnut dining table for six.",
			Categories:  []string{"tables", "dining room"},
			Price:       1250,
			Notes:       "Ships flat-packed in two boxes.",
		},
	}
	for i := range items {
		items[i].Summary = BuildSummary(items[i])
	}
	if err := s.Upsert(context.Background(), items); err != nil {
		t.Fatalf("upsert fixtures: %v", err)
	}
}

func Test_Store_CountEmpty(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("want 0 items, got %d", n)
	}
}

func Test_Store_UpsertAndCount(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("want 3 items, got %d", n)
	}
}

func Test_Store_UpsertReplacesByID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	updated := Item{ID: "lamp-1", Name: "Halo Floor Lamp v2", Price: 139}
	if err := s.Upsert(context.Background(), []Item{updated}); err != nil {
		t.Fatalf("upsert replacement: %v", err)
	}

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("replacement must not grow the inventory: want 3, got %d", n)
	}

	got, err := s.GetByIDs(context.Background(), []string{"lamp-1"})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Halo Floor Lamp v2" {
		t.Errorf("want replaced lamp, got %+v", got)
	}
}

func Test_Store_LexicalMatchesCaseInsensitive(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	items, err := s.Lexical(context.Background(), "BLUE VELVET", 10)
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	if len(items) != 1 || items[0].ID != "sofa-1" {
		t.Errorf("want sofa-1 for description match, got %+v", items)
	}
}

func Test_Store_LexicalMatchesCategories(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	items, err := s.Lexical(context.Background(), "lighting", 10)
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	if len(items) != 1 || items[0].ID != "lamp-1" {
		t.Errorf("want lamp-1 for category match, got %+v", items)
	}
}

func Test_Store_LexicalRespectsLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	// "Nordica" matches two items via summary; limit to one.
	items, err := s.Lexical(context.Background(), "nordica", 1)
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("want 1 item, got %d", len(items))
	}
}

func Test_Store_LexicalNoMatch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	items, err := s.Lexical(context.Background(), "submarine", 10)
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("want no items, got %+v", items)
	}
}

func Test_Store_LexicalWildcardsMatchLiterally(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	// A bare "%" must not match everything.
	items, err := s.Lexical(context.Background(), "100%", 10)
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("LIKE wildcards must be escaped: got %+v", items)
	}
}

func Test_Store_CategoriesRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	seedItems(t, s)

	got, err := s.GetByIDs(context.Background(), []string{"sofa-1"})
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 item, got %d", len(got))
	}
	cats := got[0].Categories
	if len(cats) != 2 || cats[0] != "sofas" || cats[1] != "living room" {
		t.Errorf("categories round trip failed: %v", cats)
	}
}

func Test_BuildSummary_IncludesAllSearchableFields(t *testing.T) {
	t.Parallel()

	it := Item{
		Name: "Drift Armchair", Brand: "Fjord",
		Description: "Curved oak armchair.",
		Categories:  []string{"chairs"},
		Notes:       "Limited run.",
	}
	sum := BuildSummary(it)

	for _, want := range []string{"Drift Armchair", "Fjord", "chairs", "Curved oak armchair", "Limited run"} {
		if !strings.Contains(sum, want) {
			t.Errorf("summary missing %q: %s", want, sum)
		}
	}
}
