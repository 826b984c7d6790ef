package retrieval

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/NNNvD/DMA/internal/domain"
	"github.com/NNNvD/DMA/internal/embedding"
)

// fakeRepo serves a fixed candidate pool. Only the methods the scorer uses
// are meaningful.
type fakeRepo struct {
	docs []*domain.Document
}

func (f *fakeRepo) RecentDocuments(_ context.Context, limit int) ([]*domain.Document, error) {
	if limit < len(f.docs) {
		return f.docs[:limit], nil
	}
	return f.docs, nil
}

func (f *fakeRepo) ListDocuments(_ context.Context, _ domain.DocumentFilter) (*domain.DocumentPage, error) {
	return nil, nil
}
func (f *fakeRepo) GetDocument(_ context.Context, _ int64) (*domain.Document, error) { return nil, nil }
func (f *fakeRepo) CreateDocument(_ context.Context, _ *domain.Document) error       { return nil }
func (f *fakeRepo) UpdateDocument(_ context.Context, _ *domain.Document) error       { return nil }
func (f *fakeRepo) DeleteDocument(_ context.Context, _ int64) (bool, error)          { return false, nil }
func (f *fakeRepo) SaveEmbedding(_ context.Context, _ int64, _ []float64) error      { return nil }
func (f *fakeRepo) DocumentsMissingEmbedding(_ context.Context, _ int) ([]*domain.Document, error) {
	return nil, nil
}
func (f *fakeRepo) SaveContext(_ context.Context, _ string, _ json.RawMessage) (*domain.ContextEntry, error) {
	return nil, nil
}
func (f *fakeRepo) LoadContext(_ context.Context, _ string) (*domain.ContextEntry, error) {
	return nil, nil
}
func (f *fakeRepo) DeleteContext(_ context.Context, _ string) (bool, error) { return false, nil }
func (f *fakeRepo) Ping(_ context.Context) error                            { return nil }
func (f *fakeRepo) Close() error                                            { return nil }

// fixedEmbedder always embeds the query as the given vector.
type fixedEmbedder struct {
	vector []float64
}

func (f *fixedEmbedder) Name() string { return "fixed" }
func (f *fixedEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return f.vector, nil
}
func (f *fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func TestExpandQuery_NPC(t *testing.T) {
	got := ExpandQuery("npc")
	want := []string{"npc", "character", "villager", "ally"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExpandQuery_FullQueryIsFirstTerm(t *testing.T) {
	got := ExpandQuery("NPC in the Tavern")
	if got[0] != "npc in the tavern" {
		t.Errorf("Expected lower-cased full query first, got %q", got[0])
	}
	// "npc" is a substring, so its synonyms follow.
	want := []string{"npc in the tavern", "character", "villager", "ally"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExpandQuery_MultipleKeysInTableOrder(t *testing.T) {
	got := ExpandQuery("lore combat")
	want := []string{"lore combat", "world", "story", "setting", "battle", "fight"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExpandQuery_NoDuplicates(t *testing.T) {
	got := ExpandQuery("character npc")
	seen := map[string]bool{}
	for _, term := range got {
		if seen[term] {
			t.Errorf("Duplicate term %q in %v", term, got)
		}
		seen[term] = true
	}
}

func TestKeywordScore_Bounds(t *testing.T) {
	terms := []string{"npc", "ally", "villager"}
	cases := []struct {
		text string
		want float64
	}{
		{"", 0.0},
		{"nothing relevant", 0.0},
		{"an npc appears", 1.0 / 3.0},
		{"npc ally villager", 1.0},
	}
	for _, tc := range cases {
		got := keywordScore(tc.text, terms)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("keywordScore(%q): expected %v, got %v", tc.text, tc.want, got)
		}
		if got < 0 || got > 1 {
			t.Errorf("keywordScore(%q) out of [0,1]: %v", tc.text, got)
		}
	}
}

func TestKeywordScore_CaseInsensitive(t *testing.T) {
	if got := keywordScore("The NPC waits", []string{"npc"}); got != 1.0 {
		t.Errorf("Expected case-insensitive match, got %v", got)
	}
}

func TestSearchDocuments_WeightedRanking(t *testing.T) {
	// Document A: embedding similarity 0.9, no keyword hits -> 0.63.
	// Document B: keyword score 1.0, no embedding -> 0.30.
	simA := math.Sqrt(1 - 0.9*0.9)
	repo := &fakeRepo{docs: []*domain.Document{
		{ID: 1, Title: "Ancient prophecy", Embedding: []float64{0.9, simA}},
		{ID: 2, Title: "About the dragon"},
	}}
	embedder := embedding.NewWithProvider(&fixedEmbedder{vector: []float64{1, 0}})
	scorer := NewScorer(repo, embedder)

	results, err := scorer.SearchDocuments(context.Background(), "dragon", 5)
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Document.ID != 1 || results[1].Document.ID != 2 {
		t.Errorf("Expected embedding match ranked first, got %+v", results)
	}
	if math.Abs(results[0].Score-0.63) > 1e-9 {
		t.Errorf("Expected combined score 0.63, got %v", results[0].Score)
	}
	if math.Abs(results[1].Score-0.30) > 1e-9 {
		t.Errorf("Expected combined score 0.30, got %v", results[1].Score)
	}
}

func TestSearchDocuments_DropsZeroScores(t *testing.T) {
	repo := &fakeRepo{docs: []*domain.Document{
		{ID: 1, Title: "Unrelated shopping list"},
		{ID: 2, Title: "The dragon's hoard"},
	}}
	scorer := NewScorer(repo, embedding.NewWithProvider(nil))

	results, err := scorer.SearchDocuments(context.Background(), "dragon", 5)
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected zero-score candidates dropped, got %d results", len(results))
	}
	if results[0].Document.ID != 2 {
		t.Errorf("Expected document 2, got %+v", results[0])
	}
}

func TestSearchDocuments_TruncatesToTopK(t *testing.T) {
	var docs []*domain.Document
	for i := int64(1); i <= 10; i++ {
		docs = append(docs, &domain.Document{ID: i, Title: "dragon tale"})
	}
	scorer := NewScorer(&fakeRepo{docs: docs}, embedding.NewWithProvider(nil))

	results, err := scorer.SearchDocuments(context.Background(), "dragon", 3)
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(results))
	}
}

func TestSearchDocuments_TiesKeepPoolOrder(t *testing.T) {
	// All candidates score identically; the pool is most-recently-updated
	// first, and ties must preserve that order.
	repo := &fakeRepo{docs: []*domain.Document{
		{ID: 3, Title: "dragon one"},
		{ID: 1, Title: "dragon two"},
		{ID: 2, Title: "dragon three"},
	}}
	scorer := NewScorer(repo, embedding.NewWithProvider(nil))

	results, err := scorer.SearchDocuments(context.Background(), "dragon", 5)
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	wantOrder := []int64{3, 1, 2}
	for i, want := range wantOrder {
		if results[i].Document.ID != want {
			t.Errorf("Result %d: expected document %d, got %d", i, want, results[i].Document.ID)
		}
	}
}

func TestSearchDocuments_DefaultTopK(t *testing.T) {
	var docs []*domain.Document
	for i := int64(1); i <= 10; i++ {
		docs = append(docs, &domain.Document{ID: i, Title: "dragon tale"})
	}
	scorer := NewScorer(&fakeRepo{docs: docs}, embedding.NewWithProvider(nil))

	results, err := scorer.SearchDocuments(context.Background(), "dragon", 0)
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) != defaultTopK {
		t.Errorf("Expected default top_k %d, got %d", defaultTopK, len(results))
	}
}
