package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	ws "github.com/vdavid/inbox-agent/internal/websocket"
)

// WebSocketHandler handles the /api/v1/agent/ws endpoint, streaming a run's
// log entries live to subscribers.
type WebSocketHandler struct {
	hub *ws.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. This server is expected to run behind a
		// reverse proxy in a trusted environment.
		return true
	},
}

// Handle upgrades the connection and subscribes it to the run's log stream.
// Clients pick the run ID before starting the run (the run endpoint accepts
// a client-supplied runId) so they can subscribe first and miss nothing.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		http.Error(w, "run_id query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocketHandler: Upgrade failed: %v", err)
		return
	}

	client := h.hub.Register(runID, conn)
	if client == nil {
		return
	}
	defer h.hub.Unregister(runID, client)

	// Drain the connection until the client hangs up. Inbound messages are
	// ignored - the stream is one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
