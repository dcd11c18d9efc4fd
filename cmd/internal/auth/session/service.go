package session

import (
	"context"
	"strings"
	"time"
)

// Identity is the authenticated principal bound to a resolved session.
type Identity struct {
	UserID    string
	SessionID string
}

// Resolver maps an opaque session token to an authenticated identity.
// It is the contract consumed by the realtime gateway and HTTP middleware:
// a failed resolve means the connection/request is refused.
type Resolver interface {
	Resolve(ctx context.Context, token string, now time.Time) (Identity, error)
}

// Service implements the high-level session operations for Chord.
//
// It issues opaque tokens, resolves them back to identities, and supports
// per-session and per-user revocation. Tokens are hashed before they reach
// the Store; the plain token exists only in the client's hands.
type Service struct {
	cfg   Config
	store Store
}

// Issued is the result of issuing a session.
type Issued struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service with the provided configuration and store.
func NewService(cfg Config, store Store) *Service {
	return &Service{cfg: cfg, store: store}
}

// Issue creates a new session for userID and returns the plain token.
func (s *Service) Issue(ctx context.Context, now time.Time, userID string) (Issued, error) {
	plain, hash, err := NewOpaqueToken(s.cfg.TokenBytes)
	if err != nil {
		return Issued{}, err
	}

	expiresAt := now.Add(s.cfg.TTL)

	sessionID, err := s.store.Create(ctx, now, userID, hash, expiresAt)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID: sessionID,
		Token:     plain,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve verifies a presented token and returns the identity that owns it.
// Expired and revoked sessions do not resolve.
func (s *Service) Resolve(ctx context.Context, token string, now time.Time) (Identity, error) {
	token = strings.TrimSpace(token)
	// Basic sanity bounds to avoid pathological inputs.
	if token == "" || len(token) > 4096 {
		return Identity{}, ErrSessionNotFound
	}

	row, err := s.store.GetByTokenHash(ctx, HashTokenHex(token))
	if err != nil {
		return Identity{}, err
	}

	if row.RevokedAt != nil {
		return Identity{}, ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return Identity{}, ErrSessionExpired
	}

	// Best-effort: resolve must not fail because a touch write failed.
	_ = s.store.Touch(ctx, now, row.ID)

	return Identity{UserID: row.UserID, SessionID: row.ID}, nil
}

// Revoke revokes a single session by ID (e.g., logout from a device).
func (s *Service) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Revoke(ctx, now, sessionID)
}

// RevokeAll revokes all sessions for a user (e.g., logout everywhere).
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	return s.store.RevokeAll(ctx, now, userID)
}

var _ Resolver = (*Service)(nil)
