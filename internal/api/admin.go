package api

import (
	"log/slog"
	"net/http"

	"github.com/NNNvD/DMA/internal/scheduler"
	"github.com/go-chi/chi/v5"
)

// AdminHandler handles maintenance endpoints.
type AdminHandler struct {
	*Handler
	reindexer *scheduler.Reindexer
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(base *Handler, reindexer *scheduler.Reindexer) *AdminHandler {
	return &AdminHandler{Handler: base, reindexer: reindexer}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/reindex", h.Reindex)
	})
}

// Reindex runs one embedding reindex batch immediately.
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	written, err := h.reindexer.Run(r.Context())
	if err != nil {
		slog.Error("Manual reindex failed", "error", err)
		Error(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"triggered": "reindex_embeddings",
		"written":   written,
	})
}
