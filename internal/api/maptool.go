package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/NNNvD/DMA/internal/maptool"
	"github.com/go-chi/chi/v5"
)

// MapToolHandler handles map pull/push endpoints backed by the MapTool adapter.
type MapToolHandler struct {
	*Handler
	adapter *maptool.Adapter
}

// NewMapToolHandler creates a new MapTool handler.
func NewMapToolHandler(base *Handler, adapter *maptool.Adapter) *MapToolHandler {
	return &MapToolHandler{Handler: base, adapter: adapter}
}

// RegisterRoutes registers MapTool routes.
func (h *MapToolHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/maptool", func(r chi.Router) {
		r.Post("/pull", h.Pull)
		r.Post("/push", h.Push)
	})
}

type mapPullRequest struct {
	MapID   string `json:"map_id"`
	Retries int    `json:"retries"`
}

type mapPushRequest struct {
	MapID   string                `json:"map_id"`
	Retries int                   `json:"retries"`
	Updates []maptool.TokenUpdate `json:"updates"`
}

// Pull fetches the full map state from MapTool and returns the campaign view.
// Adapter failures surface as 502: the upstream map server is unavailable or
// misbehaving, not this service.
func (h *MapToolHandler) Pull(w http.ResponseWriter, r *http.Request) {
	var req mapPullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MapID == "" {
		Error(w, http.StatusBadRequest, "map_id is required")
		return
	}

	state, err := h.adapter.PullMapState(r.Context(), req.MapID, r.Header.Get("Authorization"), req.Retries)
	if err != nil {
		slog.Error("Map pull failed", "error", err, "map_id", req.MapID)
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, state)
}

// Push applies token updates in order through the MapTool adapter.
func (h *MapToolHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req mapPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MapID == "" {
		Error(w, http.StatusBadRequest, "map_id is required")
		return
	}
	for _, update := range req.Updates {
		if update.TokenID == "" {
			Error(w, http.StatusBadRequest, "every update needs a token_id")
			return
		}
	}

	updated, err := h.adapter.PushTokenUpdates(r.Context(), req.MapID, req.Updates, r.Header.Get("Authorization"), req.Retries)
	if err != nil {
		slog.Error("Map push failed", "error", err, "map_id", req.MapID, "updates", len(req.Updates))
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"updated": updated})
}
