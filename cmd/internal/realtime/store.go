// Package realtime contains Chord's realtime messaging core: presence
// tracking, room fanout, the websocket gateway, and message persistence
// primitives.
package realtime

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrThreadNotFound is returned when a thread id does not resolve.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrSelfThread is returned when a thread is requested between an
	// identity and itself.
	ErrSelfThread = errors.New("thread requires two distinct participants")
)

// Thread is the single conversation object between an unordered pair of
// participants. The pair is stored canonically: UserLo < UserHi, so at most
// one Thread exists per pair.
type Thread struct {
	ID        string
	UserLo    string
	UserHi    string
	CreatedAt time.Time
}

// HasParticipant reports whether userID is one of the two participants.
func (t Thread) HasParticipant(userID string) bool {
	return userID != "" && (userID == t.UserLo || userID == t.UserHi)
}

// Message is an append-only chat message. ReadAt is nil until a recipient
// acknowledges it; nothing else is ever mutated.
type Message struct {
	ID        string
	ThreadID  string
	SenderID  string
	Body      string
	Seq       int64
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Store persists threads and messages.
//
// Requirements:
//   - FindOrCreateThread is atomic per canonical pair: concurrent calls for
//     {A,B} and {B,A} resolve to the same thread.
//   - InsertMessage allocates a monotonic per-thread seq (created_at ties
//     break by seq).
//   - ListMessages returns ascending order.
type Store interface {
	FindThreadByID(ctx context.Context, id string) (Thread, error)
	FindOrCreateThread(ctx context.Context, userA, userB string) (Thread, error)
	InsertMessage(ctx context.Context, threadID, senderID, body string) (Message, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error)

	// MarkRead stamps read_at on every message in the thread that was not
	// sent by readerID and is not yet read. Returns the number updated.
	MarkRead(ctx context.Context, threadID, readerID string) (int64, error)

	Close() error
}

// CanonicalPair orders two identities into the fixed (lo, hi) form used to
// key threads. IDs are ULIDs, so lexicographic order is stable.
func CanonicalPair(userA, userB string) (lo, hi string, err error) {
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return "", "", errors.New("empty participant id")
	}
	if userA == userB {
		return "", "", ErrSelfThread
	}
	if userA < userB {
		return userA, userB, nil
	}
	return userB, userA, nil
}
