package realtime

import (
	"log/slog"
	"sync"

	v1 "chord/shared/contracts/realtime/v1"
)

// Hub routes envelopes between connections and thread rooms.
//
// It owns the registry of connected clients and the room membership maps —
// the only shared mutable state of the realtime core besides Presence.
// A connection may belong to zero or more rooms; Unregister clears all of
// them synchronously, so no membership entry outlives its connection.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client          // conn_id -> client
	rooms   map[string]*Room            // thread_id -> room
	joined  map[string]map[string]*Room // conn_id -> thread_id -> room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[string]*Client),
		rooms:   make(map[string]*Room),
		joined:  make(map[string]map[string]*Room),
	}
}

// Register adds a connected client to the hub.
func (h *Hub) Register(client *Client) {
	if h == nil || client == nil || client.ConnID == "" {
		return
	}

	h.mu.Lock()
	h.clients[client.ConnID] = client
	h.mu.Unlock()
}

// Unregister removes the client and clears its membership in every room.
// It does not close the client; the gateway owns connection teardown.
func (h *Hub) Unregister(connID string) {
	if h == nil || connID == "" {
		return
	}

	h.mu.Lock()
	delete(h.clients, connID)
	rooms := h.joined[connID]
	delete(h.joined, connID)
	h.mu.Unlock()

	for _, room := range rooms {
		room.Leave(connID)
	}
}

// Join subscribes the client to the room for threadID, creating the room on
// first use. Idempotent and cheap: no authorization happens here — sends and
// history reads are authorized per action.
func (h *Hub) Join(client *Client, threadID string) *Room {
	if h == nil || client == nil || client.ConnID == "" || threadID == "" {
		return nil
	}

	h.mu.Lock()
	room, ok := h.rooms[threadID]
	if !ok {
		room = NewRoom(h.log, threadID)
		h.rooms[threadID] = room
	}
	set := h.joined[client.ConnID]
	if set == nil {
		set = make(map[string]*Room)
		h.joined[client.ConnID] = set
	}
	set[threadID] = room
	h.mu.Unlock()

	room.Join(client)
	return room
}

// Broadcast delivers env to every connection currently in the thread's room.
// Broadcasts for a room are delivered in the order calls are issued.
func (h *Hub) Broadcast(threadID string, env v1.Envelope) {
	if h == nil || threadID == "" {
		return
	}

	h.mu.RLock()
	room := h.rooms[threadID]
	h.mu.RUnlock()

	room.Broadcast(env)
}

// BroadcastAll delivers env to every connected client (presence flips).
// Non-blocking per client, same drop policy as Room.Broadcast.
func (h *Hub) BroadcastAll(env v1.Envelope) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c == nil {
			continue
		}

		select {
		case <-c.Done():
			continue
		default:
		}

		select {
		case c.Send <- env:
		default:
		}
	}
}
