package identity

import (
	"context"
	"time"
)

// User is an account identity. ID and Username are immutable once created;
// the messaging core only ever reads them.
type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore abstracts persistence for user accounts.
type UserStore interface {
	// Create inserts a new user. Returns ErrUsernameTaken when the
	// normalized username already exists.
	Create(ctx context.Context, now time.Time, username, name, passwordHash string) (User, error)

	// GetByUsername loads a user by normalized username.
	GetByUsername(ctx context.Context, username string) (User, error)

	// GetByID loads a user by id.
	GetByID(ctx context.Context, id string) (User, error)
}
