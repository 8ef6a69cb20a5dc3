package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 256 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is what the browser sends upstream. Today that is only
// the viewport announcement used to size the grid.
type clientMessage struct {
	Action string `json:"action"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Hub fans display events out to every connected browser. Writes to each
// connection are serialized; a failed write drops the client.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex

	// Invoked when a client announces its viewport.
	OnViewport func(width, height int)
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*sync.Mutex)}
}

// HandleWS upgrades the connection and reads client messages until it
// closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[ws] = &sync.Mutex{}
	h.mu.Unlock()
	defer h.drop(ws)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Action == "viewport" && h.OnViewport != nil {
			h.OnViewport(msg.Width, msg.Height)
		}
	}
}

// Broadcast sends one JSON event to all connected clients.
func (h *Hub) Broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for c, m := range h.clients {
		conns[c] = m
	}
	h.mu.Unlock()

	for c, m := range conns {
		m.Lock()
		err := c.WriteMessage(websocket.TextMessage, data)
		m.Unlock()
		if err != nil {
			h.drop(c)
		}
	}
}

// ClientCount returns the number of connected displays.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) drop(ws *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[ws]; ok {
		delete(h.clients, ws)
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.mu.Unlock()
}
