package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/NNNvD/DMA/internal/domain"
	"github.com/NNNvD/DMA/internal/embedding"
)

// fakeRepo serves documents missing embeddings and records saved vectors.
type fakeRepo struct {
	missing []*domain.Document
	saved   map[int64][]float64
	saveErr error
}

func newFakeRepo(missing ...*domain.Document) *fakeRepo {
	return &fakeRepo{missing: missing, saved: map[int64][]float64{}}
}

func (f *fakeRepo) DocumentsMissingEmbedding(_ context.Context, limit int) ([]*domain.Document, error) {
	if limit < len(f.missing) {
		return f.missing[:limit], nil
	}
	return f.missing, nil
}

func (f *fakeRepo) SaveEmbedding(_ context.Context, id int64, vec []float64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[id] = vec
	return nil
}

func (f *fakeRepo) ListDocuments(_ context.Context, _ domain.DocumentFilter) (*domain.DocumentPage, error) {
	return nil, nil
}
func (f *fakeRepo) GetDocument(_ context.Context, _ int64) (*domain.Document, error) { return nil, nil }
func (f *fakeRepo) CreateDocument(_ context.Context, _ *domain.Document) error       { return nil }
func (f *fakeRepo) UpdateDocument(_ context.Context, _ *domain.Document) error       { return nil }
func (f *fakeRepo) DeleteDocument(_ context.Context, _ int64) (bool, error)          { return false, nil }
func (f *fakeRepo) RecentDocuments(_ context.Context, _ int) ([]*domain.Document, error) {
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

// fakeProvider embeds every text as a fixed vector, or fails entirely.
type fakeProvider struct {
	vector []float64
	err    error
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Embed(_ context.Context, _ string) ([]float64, error) {
	return f.vector, f.err
}
func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func TestRun_WritesMissingEmbeddings(t *testing.T) {
	repo := newFakeRepo(
		&domain.Document{ID: 1, Title: "Barovia"},
		&domain.Document{ID: 2, Title: "Vallaki"},
	)
	embedder := embedding.NewWithProvider(&fakeProvider{vector: []float64{0.1, 0.2}})
	reindexer := NewReindexer(repo, embedder, 10)

	written, err := reindexer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if written != 2 {
		t.Errorf("Expected 2 vectors written, got %d", written)
	}
	if len(repo.saved[1]) != 2 || len(repo.saved[2]) != 2 {
		t.Errorf("Expected vectors saved for both documents, got %v", repo.saved)
	}
}

func TestRun_SkipsWhenDisabled(t *testing.T) {
	repo := newFakeRepo(&domain.Document{ID: 1, Title: "Barovia"})
	reindexer := NewReindexer(repo, embedding.NewWithProvider(nil), 10)

	written, err := reindexer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if written != 0 {
		t.Errorf("Expected no writes when embeddings are disabled, got %d", written)
	}
}

func TestRun_NothingMissing(t *testing.T) {
	repo := newFakeRepo()
	embedder := embedding.NewWithProvider(&fakeProvider{vector: []float64{1}})
	reindexer := NewReindexer(repo, embedder, 10)

	written, err := reindexer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if written != 0 {
		t.Errorf("Expected no writes for an empty batch, got %d", written)
	}
}

func TestRun_EmbeddingFailureSkipsBatch(t *testing.T) {
	repo := newFakeRepo(&domain.Document{ID: 1, Title: "Barovia"})
	embedder := embedding.NewWithProvider(&fakeProvider{err: errors.New("backend down")})
	reindexer := NewReindexer(repo, embedder, 10)

	written, err := reindexer.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected degraded run, got error: %v", err)
	}
	if written != 0 {
		t.Errorf("Expected no writes on embedding failure, got %d", written)
	}
	if len(repo.saved) != 0 {
		t.Errorf("Expected nothing saved, got %v", repo.saved)
	}
}

func TestRun_SaveFailureCountsOnlySuccesses(t *testing.T) {
	repo := newFakeRepo(&domain.Document{ID: 1, Title: "Barovia"})
	repo.saveErr = errors.New("disk full")
	embedder := embedding.NewWithProvider(&fakeProvider{vector: []float64{1}})
	reindexer := NewReindexer(repo, embedder, 10)

	written, err := reindexer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if written != 0 {
		t.Errorf("Expected 0 written when saves fail, got %d", written)
	}
}

func TestRun_RespectsBatchSize(t *testing.T) {
	repo := newFakeRepo(
		&domain.Document{ID: 1, Title: "A"},
		&domain.Document{ID: 2, Title: "B"},
		&domain.Document{ID: 3, Title: "C"},
	)
	embedder := embedding.NewWithProvider(&fakeProvider{vector: []float64{1}})
	reindexer := NewReindexer(repo, embedder, 2)

	written, err := reindexer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if written != 2 {
		t.Errorf("Expected batch capped at 2, got %d", written)
	}
}
