package identity

import (
	"context"
	"sync"
	"time"

	"chord/cmd/identity/ids"
)

// InMemoryStore is a dev/test fallback when DB is not configured.
type InMemoryStore struct {
	mu         sync.Mutex
	byID       map[string]User
	byUsername map[string]string // username -> id
}

// NewInMemoryStore constructs an in-memory user store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[string]User),
		byUsername: make(map[string]string),
	}
}

// Create inserts a new user.
func (s *InMemoryStore) Create(ctx context.Context, now time.Time, username, name, passwordHash string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[username]; taken {
		return User{}, ErrUsernameTaken
	}

	u := User{
		ID:           id,
		Username:     username,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
	s.byID[id] = u
	s.byUsername[username] = id
	return u, nil
}

// GetByUsername loads a user by normalized username.
func (s *InMemoryStore) GetByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

// GetByID loads a user by id.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

var _ UserStore = (*InMemoryStore)(nil)
