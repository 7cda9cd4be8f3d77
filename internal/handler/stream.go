package handler

import (
	"log/slog"
	"net/http"

	"auctionhouse/internal/feed"
	"github.com/gorilla/websocket"
)

// StreamHandler serves the websocket event feed.
type StreamHandler struct {
	hub      *feed.Hub
	buffer   int
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStreamHandler creates a StreamHandler fanning out from the given hub.
func NewStreamHandler(hub *feed.Hub, buffer int, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		hub:      hub,
		buffer:   buffer,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger,
	}
}

// Events handles GET /ws/events. An optional market_id query parameter
// restricts the stream to one market's events.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("market_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(h.buffer)
	defer h.hub.Unsubscribe(sub)

	for ev := range sub.C() {
		if marketID != "" && ev.MarketID != marketID {
			continue
		}
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
