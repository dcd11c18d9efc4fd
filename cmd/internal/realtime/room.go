package realtime

import (
	"log/slog"
	"sync"

	v1 "chord/shared/contracts/realtime/v1"
)

// Room is the in-memory subscription group for one thread's live messages.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log      *slog.Logger
	ThreadID string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a room for a thread.
func NewRoom(log *slog.Logger, threadID string) *Room {
	return &Room{
		log:      log,
		ThreadID: threadID,
		members:  make(map[string]*Client),
	}
}

// Join adds a client to membership. Idempotent.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.ConnID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.ConnID] = client
	r.mu.Unlock()

	r.log.Debug("room.member.join", "thread_id", r.ThreadID, "conn_id", client.ConnID)
}

// Leave removes a client from membership.
func (r *Room) Leave(connID string) {
	if r == nil || connID == "" {
		return
	}

	r.mu.Lock()
	delete(r.members, connID)
	r.mu.Unlock()

	r.log.Debug("room.member.leave", "thread_id", r.ThreadID, "conn_id", connID)
}

// Len returns the current member count.
func (r *Room) Len() int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Broadcast fanouts an envelope to all members.
// Non-blocking: if a member queue is full or the client is shutting down, it is dropped.
func (r *Room) Broadcast(env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- env:
		default:
			// Drop rather than block the whole room.
		}
	}
}
