package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the chord schema idempotently. Every statement is
// IF NOT EXISTS so bootstrap can run on every startup.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS chord`,

	`CREATE TABLE IF NOT EXISTS chord.users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS chord.sessions (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES chord.users (id) ON DELETE CASCADE,
		token_hash   TEXT NOT NULL UNIQUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_used_at TIMESTAMPTZ,
		expires_at   TIMESTAMPTZ NOT NULL,
		revoked_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON chord.sessions (user_id)`,

	// One thread per unordered pair: the pair is stored canonically
	// (user_lo < user_hi) and the unique constraint holds the invariant.
	`CREATE TABLE IF NOT EXISTS chord.threads (
		id         TEXT PRIMARY KEY,
		user_lo    TEXT NOT NULL,
		user_hi    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_lo, user_hi),
		CHECK (user_lo < user_hi)
	)`,
	`CREATE INDEX IF NOT EXISTS threads_user_hi_idx ON chord.threads (user_hi)`,

	`CREATE TABLE IF NOT EXISTS chord.thread_cursors (
		thread_id  TEXT PRIMARY KEY REFERENCES chord.threads (id) ON DELETE CASCADE,
		next_seq   BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS chord.messages (
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL REFERENCES chord.threads (id) ON DELETE CASCADE,
		seq        BIGINT NOT NULL,
		sender_id  TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		read_at    TIMESTAMPTZ,
		UNIQUE (thread_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS messages_thread_seq_idx ON chord.messages (thread_id, seq)`,
}

// EnsureSchema creates the chord schema and tables when missing.
func EnsureSchema(parent context.Context, pool *pgxpool.Pool, log Logger) error {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	log.Info("db.schema.ready", "schema", "chord")
	return nil
}
