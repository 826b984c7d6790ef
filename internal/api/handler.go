// Package api provides HTTP handlers for the DMA API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/NNNvD/DMA/internal/embedding"
	"github.com/NNNvD/DMA/internal/retrieval"
	"github.com/NNNvD/DMA/internal/store"
)

// Handler provides common handler dependencies and utilities.
type Handler struct {
	repo     store.Repository
	embedder *embedding.Service
	scorer   *retrieval.Scorer
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, embedder *embedding.Service, scorer *retrieval.Scorer) *Handler {
	return &Handler{
		repo:     repo,
		embedder: embedder,
		scorer:   scorer,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
