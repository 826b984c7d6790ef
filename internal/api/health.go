package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	*Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(base *Handler) *HealthHandler {
	return &HealthHandler{Handler: base}
}

// RegisterRoutes registers the detailed health route. The cheap liveness
// check is served by the chi Heartbeat middleware at /health.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health checks database connectivity and reports the embedding provider.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	dbStatus := "ok"
	if err := h.repo.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}
	JSON(w, code, map[string]interface{}{
		"status":             status,
		"database":           dbStatus,
		"embedding_provider": h.embedder.ProviderName(),
	})
}
