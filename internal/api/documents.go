package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/NNNvD/DMA/internal/domain"
	"github.com/go-chi/chi/v5"
)

// DocumentHandler handles document CRUD and search endpoints.
type DocumentHandler struct {
	*Handler
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *Handler) *DocumentHandler {
	return &DocumentHandler{Handler: base}
}

// RegisterRoutes registers document routes.
func (h *DocumentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/search", h.Search)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

type documentResponse struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	Content      string `json:"content,omitempty"`
	Summary      string `json:"summary,omitempty"`
	SourceName   string `json:"source_name,omitempty"`
	URL          string `json:"url,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	HasEmbedding bool   `json:"has_embedding"`
}

func toDocumentResponse(d *domain.Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		Title:        d.Title,
		Kind:         d.Kind,
		Content:      d.Content,
		Summary:      d.Summary,
		SourceName:   d.SourceName,
		URL:          d.URL,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    d.UpdatedAt.Format(time.RFC3339),
		HasEmbedding: d.HasEmbedding(),
	}
}

// List returns a filtered, paginated document listing.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.DocumentFilter{
		Kind:     q.Get("kind"),
		Query:    q.Get("q"),
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("page_size"), 20),
	}

	page, err := h.repo.ListDocuments(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list documents", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	items := make([]documentResponse, len(page.Items))
	for i, doc := range page.Items {
		items[i] = toDocumentResponse(doc)
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"items":     items,
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
		"pages":     page.Pages,
	})
}

// Get returns one document by ID.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	doc, err := h.repo.GetDocument(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get document", "error", err, "document_id", id)
		Error(w, http.StatusInternalServerError, "failed to get document")
		return
	}
	if doc == nil {
		Error(w, http.StatusNotFound, "document not found")
		return
	}
	JSON(w, http.StatusOK, toDocumentResponse(doc))
}

type documentCreateRequest struct {
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Content    string `json:"content"`
	Summary    string `json:"summary"`
	SourceName string `json:"source_name"`
	URL        string `json:"url"`
}

// Create inserts a document and computes its embedding best-effort.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req documentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Kind == "" {
		Error(w, http.StatusBadRequest, "title and kind are required")
		return
	}

	doc := &domain.Document{
		Title:      req.Title,
		Kind:       req.Kind,
		Content:    req.Content,
		Summary:    req.Summary,
		SourceName: req.SourceName,
		URL:        req.URL,
	}
	if h.embedder.Enabled() {
		doc.Embedding = h.embedder.GenerateEmbedding(r.Context(), h.embedder.DocumentText(doc))
	}

	if err := h.repo.CreateDocument(r.Context(), doc); err != nil {
		slog.Error("Failed to create document", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	slog.Info("Document created", "document_id", doc.ID, "kind", doc.Kind)
	JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

type documentUpdateRequest struct {
	Title            *string `json:"title"`
	Kind             *string `json:"kind"`
	Content          *string `json:"content"`
	Summary          *string `json:"summary"`
	SourceName       *string `json:"source_name"`
	URL              *string `json:"url"`
	RefreshEmbedding bool    `json:"refresh_embedding"`
}

// Update applies a partial document update. The embedding is refreshed when a
// content-bearing field changed or the caller asked for it explicitly.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	var req documentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.repo.GetDocument(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get document", "error", err, "document_id", id)
		Error(w, http.StatusInternalServerError, "failed to get document")
		return
	}
	if doc == nil {
		Error(w, http.StatusNotFound, "document not found")
		return
	}

	contentChanged := false
	apply := func(dst *string, src *string, bearing bool) {
		if src != nil {
			*dst = *src
			if bearing {
				contentChanged = true
			}
		}
	}
	apply(&doc.Title, req.Title, true)
	apply(&doc.Kind, req.Kind, true)
	apply(&doc.Content, req.Content, true)
	apply(&doc.Summary, req.Summary, true)
	apply(&doc.SourceName, req.SourceName, true)
	apply(&doc.URL, req.URL, false)

	if (req.RefreshEmbedding || contentChanged) && h.embedder.Enabled() {
		if vec := h.embedder.GenerateEmbedding(r.Context(), h.embedder.DocumentText(doc)); vec != nil {
			doc.Embedding = vec
		}
	}

	if err := h.repo.UpdateDocument(r.Context(), doc); err != nil {
		slog.Error("Failed to update document", "error", err, "document_id", id)
		Error(w, http.StatusInternalServerError, "failed to update document")
		return
	}
	JSON(w, http.StatusOK, toDocumentResponse(doc))
}

// Delete removes a document.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	deleted, err := h.repo.DeleteDocument(r.Context(), id)
	if err != nil {
		slog.Error("Failed to delete document", "error", err, "document_id", id)
		Error(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	if !deleted {
		Error(w, http.StatusNotFound, "document not found")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
}

// Search ranks documents for a free-text query.
func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		Error(w, http.StatusBadRequest, "q is required")
		return
	}
	topK := queryInt(r.URL.Query().Get("top_k"), 0)

	results, err := h.scorer.SearchDocuments(r.Context(), query, topK)
	if err != nil {
		slog.Error("Document search failed", "error", err, "query", query)
		Error(w, http.StatusInternalServerError, "search failed")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
