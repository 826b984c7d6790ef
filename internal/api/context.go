package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ContextHandler handles campaign context save/restore endpoints.
type ContextHandler struct {
	*Handler
}

// NewContextHandler creates a new context handler.
func NewContextHandler(base *Handler) *ContextHandler {
	return &ContextHandler{Handler: base}
}

// RegisterRoutes registers context routes.
func (h *ContextHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/context", func(r chi.Router) {
		r.Post("/save", h.Save)
		r.Get("/restore/{key}", h.Restore)
		r.Delete("/{key}", h.Delete)
	})
}

type contextSaveRequest struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// Save creates or replaces a context entry.
func (h *ContextHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req contextSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" || len(req.Data) == 0 {
		Error(w, http.StatusBadRequest, "key and data are required")
		return
	}

	entry, err := h.repo.SaveContext(r.Context(), req.Key, req.Data)
	if err != nil {
		slog.Error("Failed to save context", "error", err, "key", req.Key)
		Error(w, http.StatusInternalServerError, "failed to save context")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"key":        entry.Key,
		"updated_at": entry.UpdatedAt.Format(time.RFC3339),
	})
}

// Restore returns a context entry by key.
func (h *ContextHandler) Restore(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	entry, err := h.repo.LoadContext(r.Context(), key)
	if err != nil {
		slog.Error("Failed to load context", "error", err, "key", key)
		Error(w, http.StatusInternalServerError, "failed to load context")
		return
	}
	if entry == nil {
		Error(w, http.StatusNotFound, "context not found")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"key":        entry.Key,
		"data":       entry.Data,
		"updated_at": entry.UpdatedAt.Format(time.RFC3339),
	})
}

// Delete removes a context entry.
func (h *ContextHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	deleted, err := h.repo.DeleteContext(r.Context(), key)
	if err != nil {
		slog.Error("Failed to delete context", "error", err, "key", key)
		Error(w, http.StatusInternalServerError, "failed to delete context")
		return
	}
	if !deleted {
		Error(w, http.StatusNotFound, "context not found")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "key": key})
}
