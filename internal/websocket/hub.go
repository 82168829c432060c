package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client wraps a WebSocket connection.
type Client struct {
	conn *websocket.Conn
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Hub manages active WebSocket connections per run. A run can have several
// subscribers (e.g., multiple tabs watching the same run).
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{} // runID -> set of clients
	maxPerRun int
}

// NewHub creates a new Hub with a per-run connection limit.
func NewHub(maxPerRun int) *Hub {
	if maxPerRun <= 0 {
		maxPerRun = 10
	}
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		maxPerRun: maxPerRun,
	}
}

// Register adds a WebSocket connection for the given run.
// If the per-run limit is exceeded, the new connection is closed and nil is returned.
func (h *Hub) Register(runID string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	runClients, ok := h.clients[runID]
	if !ok {
		runClients = make(map[*Client]struct{})
		h.clients[runID] = runClients
	}

	if len(runClients) >= h.maxPerRun {
		log.Printf("websocket: run %s exceeded max connections (%d), closing new connection", runID, h.maxPerRun)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections for this run"),
			// Zero deadline - best effort.
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{conn: conn}
	runClients[client] = struct{}{}
	return client
}

// Unregister removes a client for the given run and closes the connection.
func (h *Hub) Unregister(runID string, client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	runClients, ok := h.clients[runID]
	if !ok {
		_ = client.conn.Close()
		return
	}

	delete(runClients, client)

	if len(runClients) == 0 {
		delete(h.clients, runID)
	}

	_ = client.conn.Close()
}

// Send broadcasts a message to all active clients for the run.
func (h *Hub) Send(runID string, msg []byte) {
	// Snapshot the client set under the lock; Register may grow the map
	// while a run is logging.
	h.mu.RLock()
	runClients := make([]*Client, 0, len(h.clients[runID]))
	for client := range h.clients[runID] {
		runClients = append(runClients, client)
	}
	h.mu.RUnlock()

	for _, client := range runClients {
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("websocket: failed to write message for run %s: %v", runID, err)
			// Best-effort cleanup: unregister this client.
			go h.Unregister(runID, client)
		}
	}
}

// ActiveConnections returns the number of active WebSocket connections for a run.
func (h *Hub) ActiveConnections(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[runID])
}
