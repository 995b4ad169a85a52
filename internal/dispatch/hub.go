package dispatch

import (
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Hub routes events to websocket clients by room. Send channels are
// buffered; a full buffer drops the event rather than blocking the
// broadcast loop.
type Hub struct {
	clients map[string]*Client         // userID -> Client
	rooms   map[string]map[string]bool // room -> userID set
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
	}
}

func (h *Hub) AddClient(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = c
}

func (h *Hub) RemoveClient(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, userID)
	for _, members := range h.rooms {
		delete(members, userID)
	}
}

func (h *Hub) JoinRoom(room, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][userID] = true
}

func (h *Hub) LeaveRoom(room, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, userID)
	}
}

// RoomMembers snapshots the current member set of a room.
func (h *Hub) RoomMembers(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[room]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (h *Hub) ToRoom(room string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if members, ok := h.rooms[room]; ok {
		for userID := range members {
			if client, ok := h.clients[userID]; ok {
				client.Send(ev)
			}
		}
	}
}

// Broadcast delivers to every connected client, regardless of rooms.
// Used for global signals such as presence changes.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.Send(ev)
	}
}

func (h *Hub) ToUser(userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[userID]; ok {
		client.Send(ev)
	}
}

// Client represents one connected websocket peer. Writes happen on a
// single pump goroutine so per-connection emission order holds.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan Event
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan Event, 256),
	}
}

func (c *Client) Send(ev Event) {
	select {
	case c.send <- ev:
	default:
		// drop if blocked
	}
}

func (c *Client) WritePump() {
	for ev := range c.send {
		if err := c.Conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (c *Client) Close() {
	close(c.send)
}
