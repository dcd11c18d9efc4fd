package realtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
//   - FindOrCreateThread is a single INSERT ... ON CONFLICT ... RETURNING
//     statement keyed on the canonical (user_lo, user_hi) pair, so two
//     concurrent "start conversation" requests cannot create two threads.
//   - InsertMessage uses a per-thread transactional advisory lock plus a
//     cursor row to guarantee gapless, strictly monotonic seq allocation.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "chord").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("realtime: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("realtime: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "chord",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("realtime: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// FindThreadByID loads a thread row by id.
func (s *PostgresStore) FindThreadByID(ctx context.Context, id string) (Thread, error) {
	if s == nil || s.pool == nil {
		return Thread{}, errors.New("realtime: nil store")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Thread{}, ErrThreadNotFound
	}
	if err := ctx.Err(); err != nil {
		return Thread{}, err
	}

	threads := pgIdent(s.schema, "threads")

	var t Thread
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_lo, user_hi, created_at FROM `+threads+` WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.UserLo, &t.UserHi, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Thread{}, ErrThreadNotFound
	}
	if err != nil {
		return Thread{}, err
	}
	return t, nil
}

// FindOrCreateThread atomically resolves the canonical pair to its thread.
//
// The DO UPDATE arm is a deliberate no-op write: it makes the statement
// return the existing row under conflict, which plain DO NOTHING would not.
func (s *PostgresStore) FindOrCreateThread(ctx context.Context, userA, userB string) (Thread, error) {
	if s == nil || s.pool == nil {
		return Thread{}, errors.New("realtime: nil store")
	}
	if err := ctx.Err(); err != nil {
		return Thread{}, err
	}

	lo, hi, err := CanonicalPair(userA, userB)
	if err != nil {
		return Thread{}, err
	}

	now := time.Now().UTC()
	id, err := NewMessageID(now)
	if err != nil {
		return Thread{}, err
	}

	threads := pgIdent(s.schema, "threads")

	var t Thread
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+threads+` (id, user_lo, user_hi, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_lo, user_hi) DO UPDATE SET user_lo = EXCLUDED.user_lo
		 RETURNING id, user_lo, user_hi, created_at`,
		id, lo, hi, now,
	).Scan(&t.ID, &t.UserLo, &t.UserHi, &t.CreatedAt)
	if err != nil {
		return Thread{}, fmt.Errorf("upsert thread: %w", err)
	}
	return t, nil
}

// InsertMessage appends a message with monotonic sequence allocation.
func (s *PostgresStore) InsertMessage(ctx context.Context, threadID, senderID, body string) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, errors.New("realtime: nil store")
	}
	if threadID == "" || senderID == "" || body == "" {
		return Message{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := time.Now().UTC()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Message{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cursors := pgIdent(s.schema, "thread_cursors")
	messages := pgIdent(s.schema, "messages")

	// Serialize all writes per thread to guarantee strict monotonic ordering
	// without races. hashtextextended reduces collision risk vs hashtext.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, threadID); err != nil {
		return Message{}, fmt.Errorf("advisory lock: %w", err)
	}

	// Cursor row ensures monotonic seq allocation.
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+cursors+` (thread_id, next_seq)
		 VALUES ($1, 1)
		 ON CONFLICT (thread_id) DO NOTHING`,
		threadID,
	); err != nil {
		return Message{}, err
	}

	var seq int64
	if err := tx.QueryRow(ctx,
		`UPDATE `+cursors+`
		    SET next_seq = next_seq + 1,
		        updated_at = now()
		  WHERE thread_id = $1
		RETURNING (next_seq - 1)`,
		threadID,
	).Scan(&seq); err != nil {
		return Message{}, err
	}

	id, err := NewMessageID(now)
	if err != nil {
		return Message{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+messages+` (
		     id, thread_id, seq, sender_id, body, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, threadID, seq, senderID, body, now,
	); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	out := Message{
		ID:        id,
		ThreadID:  threadID,
		SenderID:  senderID,
		Body:      body,
		Seq:       seq,
		CreatedAt: now,
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}
	return out, nil
}

// ListMessages returns up to limit messages ordered by seq ASC.
func (s *PostgresStore) ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("realtime: nil store")
	}
	if threadID == "" {
		return nil, errors.New("missing thread id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit = clampHistoryLimit(limit)

	messages := pgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, seq, sender_id, body, created_at, read_at
		   FROM `+messages+`
		  WHERE thread_id = $1
		  ORDER BY seq ASC
		  LIMIT $2`,
		threadID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.ThreadID,
			&m.Seq,
			&m.SenderID,
			&m.Body,
			&m.CreatedAt,
			&m.ReadAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return msgs, nil
}

// MarkRead stamps read_at on all unread messages not sent by readerID.
func (s *PostgresStore) MarkRead(ctx context.Context, threadID, readerID string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("realtime: nil store")
	}
	if threadID == "" || readerID == "" {
		return 0, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	messages := pgIdent(s.schema, "messages")

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+messages+`
		    SET read_at = now()
		  WHERE thread_id = $1
		    AND sender_id <> $2
		    AND read_at IS NULL`,
		threadID, readerID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
