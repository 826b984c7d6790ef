package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/NNNvD/DMA/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func TestDocumentCRUD(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{
		Title:      "Tarokka Reading",
		Kind:       "lore",
		Content:    "The cards reveal...",
		SourceName: "DM Notes",
	}
	if err := repo.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if doc.ID == 0 {
		t.Fatal("Expected document ID to be set")
	}

	got, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got == nil || got.Title != "Tarokka Reading" || got.Kind != "lore" {
		t.Errorf("Unexpected document: %+v", got)
	}
	if got.HasEmbedding() {
		t.Error("Expected no embedding on fresh document")
	}

	got.Summary = "Fortune telling results"
	if err := repo.UpdateDocument(ctx, got); err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}
	updated, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument after update failed: %v", err)
	}
	if updated.Summary != "Fortune telling results" {
		t.Errorf("Expected updated summary, got %q", updated.Summary)
	}

	deleted, err := repo.DeleteDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if !deleted {
		t.Error("Expected delete to report true")
	}
	gone, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument after delete failed: %v", err)
	}
	if gone != nil {
		t.Errorf("Expected nil after delete, got %+v", gone)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	repo := newTestStore(t)
	doc, err := repo.GetDocument(context.Background(), 12345)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc != nil {
		t.Errorf("Expected nil for missing document, got %+v", doc)
	}
}

func TestDeleteDocument_NotFound(t *testing.T) {
	repo := newTestStore(t)
	deleted, err := repo.DeleteDocument(context.Background(), 12345)
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if deleted {
		t.Error("Expected delete of missing document to report false")
	}
}

func TestListDocuments_FilterAndPagination(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		kind := "rule"
		if i%2 == 0 {
			kind = "npc"
		}
		doc := &domain.Document{Title: "Doc", Kind: kind, Content: "grappling rules"}
		if err := repo.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
	}

	page, err := repo.ListDocuments(ctx, domain.DocumentFilter{Kind: "npc"})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Expected 3 npc documents, got %d", page.Total)
	}

	page, err = repo.ListDocuments(ctx, domain.DocumentFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 5 || page.Pages != 3 {
		t.Errorf("Unexpected pagination: items=%d total=%d pages=%d", len(page.Items), page.Total, page.Pages)
	}

	page, err = repo.ListDocuments(ctx, domain.DocumentFilter{Query: "grappling"})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("Expected content search to match all 5, got %d", page.Total)
	}
}

func TestRecentDocuments_OrderedByUpdateDescending(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first := &domain.Document{Title: "First", Kind: "lore"}
	if err := repo.CreateDocument(ctx, first); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	// Timestamps have second resolution; make the second document newer.
	time.Sleep(1100 * time.Millisecond)
	second := &domain.Document{Title: "Second", Kind: "lore"}
	if err := repo.CreateDocument(ctx, second); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	docs, err := repo.RecentDocuments(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].Title != "Second" {
		t.Errorf("Expected most recently updated first, got %q", docs[0].Title)
	}

	docs, err = repo.RecentDocuments(ctx, 1)
	if err != nil {
		t.Fatalf("RecentDocuments failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("Expected limit to cap results, got %d", len(docs))
	}
}

func TestSaveEmbedding_RoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	doc := &domain.Document{Title: "Vistani camp", Kind: "lore"}
	if err := repo.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	missing, err := repo.DocumentsMissingEmbedding(ctx, 10)
	if err != nil {
		t.Fatalf("DocumentsMissingEmbedding failed: %v", err)
	}
	if len(missing) != 1 {
		t.Fatalf("Expected 1 document missing embedding, got %d", len(missing))
	}

	vec := []float64{0.1, -0.2, 0.3}
	if err := repo.SaveEmbedding(ctx, doc.ID, vec); err != nil {
		t.Fatalf("SaveEmbedding failed: %v", err)
	}

	got, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != -0.2 {
		t.Errorf("Unexpected embedding round trip: %v", got.Embedding)
	}

	missing, err = repo.DocumentsMissingEmbedding(ctx, 10)
	if err != nil {
		t.Fatalf("DocumentsMissingEmbedding failed: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("Expected no documents missing embedding, got %d", len(missing))
	}
}

func TestContextSaveLoadDelete(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	data := json.RawMessage(`{"scene":"tavern","round":3}`)
	entry, err := repo.SaveContext(ctx, "session-12", data)
	if err != nil {
		t.Fatalf("SaveContext failed: %v", err)
	}
	if entry.Key != "session-12" {
		t.Errorf("Expected key 'session-12', got %q", entry.Key)
	}

	// Saving the same key replaces the data.
	replaced, err := repo.SaveContext(ctx, "session-12", json.RawMessage(`{"scene":"crypt"}`))
	if err != nil {
		t.Fatalf("SaveContext replace failed: %v", err)
	}
	if string(replaced.Data) != `{"scene":"crypt"}` {
		t.Errorf("Expected replaced data, got %s", replaced.Data)
	}

	loaded, err := repo.LoadContext(ctx, "session-12")
	if err != nil {
		t.Fatalf("LoadContext failed: %v", err)
	}
	if loaded == nil || string(loaded.Data) != `{"scene":"crypt"}` {
		t.Errorf("Unexpected loaded entry: %+v", loaded)
	}

	deleted, err := repo.DeleteContext(ctx, "session-12")
	if err != nil {
		t.Fatalf("DeleteContext failed: %v", err)
	}
	if !deleted {
		t.Error("Expected delete to report true")
	}

	gone, err := repo.LoadContext(ctx, "session-12")
	if err != nil {
		t.Fatalf("LoadContext after delete failed: %v", err)
	}
	if gone != nil {
		t.Errorf("Expected nil after delete, got %+v", gone)
	}
}
