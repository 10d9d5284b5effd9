package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/NotCoffee418/kamstrup_meter/pkg/coordinator"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Notification is pushed to clients when a cycle returned no readings at all.
type Notification struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Hub fans snapshots out to connected websocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	latest   func() *coordinator.Snapshot

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	// gorilla/websocket allows one concurrent writer per connection.
	writeMu sync.Mutex
}

func NewHub(latest func() *coordinator.Snapshot) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		latest:  latest,
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeWS upgrades the request and keeps the client until it goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	h.Add(conn)

	// Send current snapshot immediately if available
	if h.latest != nil {
		if snap := h.latest(); snap != nil {
			h.write(conn, snap.ToJsonBytes())
		}
	}

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Remove(conn)
			return
		}
	}
}

func (h *Hub) Broadcast(snap *coordinator.Snapshot) {
	h.send(snap.ToJsonBytes())
}

func (h *Hub) Notify(n Notification) {
	b, err := json.Marshal(n)
	if err != nil {
		return
	}
	h.send(b)
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) send(message []byte) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := h.write(client, message); err != nil {
			h.Remove(client)
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, message []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, message)
}
