package realtime

import (
	"sync"
)

// Presence tracks how many connections each identity currently holds.
//
// It is the single owner of the counter map: every mutation goes through the
// mutex, and counters never go below zero even when disconnects race
// connects for the same identity. State is process-lifetime only.
type Presence struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewPresence constructs an empty registry.
func NewPresence() *Presence {
	return &Presence{counts: make(map[string]int)}
}

// Connect records one more open connection for userID.
// It reports whether the identity just came online (count 0 -> 1); the
// caller broadcasts the presence flip exactly when that is true.
func (p *Presence) Connect(userID string) (wentOnline bool) {
	if p == nil || userID == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[userID]++
	return p.counts[userID] == 1
}

// Disconnect records one closed connection for userID.
// It reports whether the identity just went offline (count 1 -> 0).
// A disconnect for an untracked identity is a no-op, not an error.
func (p *Presence) Disconnect(userID string) (wentOffline bool) {
	if p == nil || userID == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.counts[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.counts, userID)
		return true
	}
	p.counts[userID] = n - 1
	return false
}

// IsOnline reports whether userID has at least one open connection.
func (p *Presence) IsOnline(userID string) bool {
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.counts[userID] > 0
}

// OnlineCount returns the number of distinct identities currently online.
func (p *Presence) OnlineCount() int {
	if p == nil {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.counts)
}
