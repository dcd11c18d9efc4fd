package session

import (
	"context"
	"time"
)

// Row mirrors the chord.sessions row used by the session subsystem.
type Row struct {
	ID         string
	UserID     string
	TokenHash  string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// Store abstracts persistence for session state.
type Store interface {
	// Create creates a new session row.
	Create(ctx context.Context, now time.Time, userID, tokenHash string, expiresAt time.Time) (sessionID string, err error)

	// GetByTokenHash loads a session row by token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (Row, error)

	// Touch updates last_used_at for a session (best-effort).
	Touch(ctx context.Context, now time.Time, sessionID string) error

	// Revoke revokes a single session.
	Revoke(ctx context.Context, now time.Time, sessionID string) error

	// RevokeAll revokes all sessions for a user.
	RevokeAll(ctx context.Context, now time.Time, userID string) error
}
