package session

import (
	"context"
	"sync"
	"time"

	"chord/cmd/identity/ids"
)

// InMemoryStore is a dev/test fallback when DB is not configured.
type InMemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Row
	byHash map[string]string // token_hash -> session id
}

// NewInMemoryStore constructs an in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[string]*Row),
		byHash: make(map[string]string),
	}
}

// Create creates a new session row.
func (s *InMemoryStore) Create(ctx context.Context, now time.Time, userID, tokenHash string, expiresAt time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := now
	s.byID[id] = &Row{
		ID:         id,
		UserID:     userID,
		TokenHash:  tokenHash,
		CreatedAt:  created,
		LastUsedAt: &created,
		ExpiresAt:  expiresAt,
	}
	s.byHash[tokenHash] = id
	return id, nil
}

// GetByTokenHash loads a session row by token hash.
func (s *InMemoryStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[tokenHash]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return *s.byID[id], nil
}

// Touch updates last_used_at for a session.
func (s *InMemoryStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.byID[sessionID]; ok && row.RevokedAt == nil {
		ts := now
		row.LastUsedAt = &ts
	}
	return nil
}

// Revoke revokes a single session.
func (s *InMemoryStore) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.byID[sessionID]; ok && row.RevokedAt == nil {
		ts := now
		row.RevokedAt = &ts
	}
	return nil
}

// RevokeAll revokes all sessions for a user.
func (s *InMemoryStore) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.byID {
		if row.UserID == userID && row.RevokedAt == nil {
			ts := now
			row.RevokedAt = &ts
		}
	}
	return nil
}

var _ Store = (*InMemoryStore)(nil)
