package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chord/cmd/identity/ids"
)

// PostgresStore implements UserStore using PostgreSQL (chord.users).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Create inserts a new user row.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, username, name, passwordHash string) (User, error) {
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chord.users (id, username, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, username, name, passwordHash, now)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation on username.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}

	return User{
		ID:           id,
		Username:     username,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// GetByUsername loads a user by normalized username.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.get(ctx, `
		SELECT id, username, name, password_hash, created_at
		FROM chord.users
		WHERE username = $1
	`, username)
}

// GetByID loads a user by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.get(ctx, `
		SELECT id, username, name, password_hash, created_at
		FROM chord.users
		WHERE id = $1
	`, id)
}

func (s *PostgresStore) get(ctx context.Context, query, arg string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Name,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

var _ UserStore = (*PostgresStore)(nil)
