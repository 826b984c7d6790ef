package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/NNNvD/DMA/internal/maptool"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WatchHandler streams periodic map state snapshots over a websocket.
type WatchHandler struct {
	adapter  *maptool.Adapter
	interval time.Duration
}

// NewWatchHandler creates a map watch handler polling at the given interval.
func NewWatchHandler(adapter *maptool.Adapter, interval time.Duration) *WatchHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &WatchHandler{adapter: adapter, interval: interval}
}

type watchMessage struct {
	Type  string      `json:"type"` // "state" or "error"
	State interface{} `json:"state,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ServeHTTP upgrades to a websocket and pushes one map snapshot immediately,
// then one per poll interval, until the client disconnects.
func (h *WatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mapID := r.URL.Query().Get("map_id")
	if mapID == "" {
		Error(w, http.StatusBadRequest, "map_id is required")
		return
	}
	authHeader := r.Header.Get("Authorization")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept map watch websocket", "error", err, "map_id", mapID)
		return
	}

	watchID := uuid.NewString()
	slog.Info("Map watch started", "watch_id", watchID, "map_id", mapID, "interval", h.interval)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "watch ended"); closeErr != nil {
			slog.Debug("Map watch close failed", "watch_id", watchID, "error", closeErr)
		}
		slog.Info("Map watch ended", "watch_id", watchID, "map_id", mapID)
	}()

	ctx := r.Context()
	if err := h.pushSnapshot(ctx, ws, mapID, authHeader); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := h.pushSnapshot(ctx, ws, mapID, authHeader); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// pushSnapshot pulls the map and writes one message. A pull failure is
// reported to the client but keeps the watch alive; a write failure ends it.
func (h *WatchHandler) pushSnapshot(ctx context.Context, ws *websocket.Conn, mapID, authHeader string) error {
	var msg watchMessage
	state, err := h.adapter.PullMapState(ctx, mapID, authHeader, 0)
	if err != nil {
		msg = watchMessage{Type: "error", Error: err.Error()}
	} else {
		msg = watchMessage{Type: "state", State: state}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
