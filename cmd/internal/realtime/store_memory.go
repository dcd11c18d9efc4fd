package realtime

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	memMaxMessagesPerThread = 10_000
)

// InMemoryStore is a dev/test fallback when DB is not configured.
// It honors the same contract as PostgresStore: one thread per canonical
// pair, monotonic per-thread seq, ascending history.
type InMemoryStore struct {
	mu      sync.Mutex
	threads map[string]*memThread
	byPair  map[[2]string]string // (lo, hi) -> thread id
}

type memThread struct {
	thread Thread
	seq    int64
	msgs   []*Message // ordered by seq
}

// NewInMemoryStore constructs an in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		threads: make(map[string]*memThread),
		byPair:  make(map[[2]string]string),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// FindThreadByID returns the thread or ErrThreadNotFound.
func (s *InMemoryStore) FindThreadByID(ctx context.Context, id string) (Thread, error) {
	if err := ctx.Err(); err != nil {
		return Thread{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return Thread{}, ErrThreadNotFound
	}
	return t.thread, nil
}

// FindOrCreateThread resolves the canonical pair to its single thread,
// creating it on first use. Safe under concurrent calls for the same pair.
func (s *InMemoryStore) FindOrCreateThread(ctx context.Context, userA, userB string) (Thread, error) {
	if err := ctx.Err(); err != nil {
		return Thread{}, err
	}

	lo, hi, err := CanonicalPair(userA, userB)
	if err != nil {
		return Thread{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{lo, hi}
	if id, ok := s.byPair[key]; ok {
		return s.threads[id].thread, nil
	}

	now := time.Now().UTC()
	id, err := NewMessageID(now)
	if err != nil {
		return Thread{}, err
	}

	t := Thread{ID: id, UserLo: lo, UserHi: hi, CreatedAt: now}
	s.threads[id] = &memThread{thread: t, msgs: make([]*Message, 0, 64)}
	s.byPair[key] = id
	return t, nil
}

// InsertMessage appends a message with monotonic sequence allocation.
func (s *InMemoryStore) InsertMessage(ctx context.Context, threadID, senderID, body string) (Message, error) {
	if threadID == "" || senderID == "" || body == "" {
		return Message{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return Message{}, ErrThreadNotFound
	}

	now := time.Now().UTC()
	id, err := NewMessageID(now)
	if err != nil {
		return Message{}, err
	}

	t.seq++
	msg := &Message{
		ID:        id,
		ThreadID:  threadID,
		SenderID:  senderID,
		Body:      body,
		Seq:       t.seq,
		CreatedAt: now,
	}
	t.msgs = append(t.msgs, msg)

	// Bound memory to avoid unbounded growth in dev.
	if len(t.msgs) > memMaxMessagesPerThread {
		t.msgs = t.msgs[len(t.msgs)-memMaxMessagesPerThread:]
	}

	return *msg, nil
}

// ListMessages returns up to limit messages ordered by seq ASC.
func (s *InMemoryStore) ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if threadID == "" {
		return nil, errors.New("missing thread id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit = clampHistoryLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}

	n := len(t.msgs)
	if n > limit {
		n = limit
	}
	out := make([]Message, 0, n)
	for _, m := range t.msgs[:n] {
		out = append(out, *m)
	}
	return out, nil
}

// MarkRead stamps read_at on unread messages not sent by readerID.
func (s *InMemoryStore) MarkRead(ctx context.Context, threadID, readerID string) (int64, error) {
	if threadID == "" || readerID == "" {
		return 0, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return 0, ErrThreadNotFound
	}

	now := time.Now().UTC()
	var updated int64
	for _, m := range t.msgs {
		if m.SenderID == readerID || m.ReadAt != nil {
			continue
		}
		ts := now
		m.ReadAt = &ts
		updated++
	}
	return updated, nil
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
