package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of pgxpool.Pool the store needs, kept as an
// interface so tests can substitute pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool     DBPool
	maxTurns int
}

var _ Store = (*PostgresStore)(nil)

// PostgresOptions configures the Postgres store.
type PostgresOptions struct {
	ConnString string
	MaxTurns   int
}

// NewPostgresStore creates a store with its own connection pool.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &PostgresStore{pool: pool, maxTurns: opts.MaxTurns}, nil
}

// NewPostgresStoreWithPool creates a store over an existing pool. Useful
// for testing with mocks.
func NewPostgresStoreWithPool(pool DBPool, maxTurns int) *PostgresStore {
	return &PostgresStore{pool: pool, maxTurns: maxTurns}
}

// InitSchema creates the tables if they don't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			last_state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS turns (
			seq BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns (session_id);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Load reads the session row and its turns in sequence order.
func (s *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	sess := emptySession(id)

	var stateJSON []byte
	err := s.pool.QueryRow(ctx,
		"SELECT last_state, updated_at FROM sessions WHERE id = $1", id,
	).Scan(&stateJSON, &sess.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return sess, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &sess.LastState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT role, text, timestamp FROM turns WHERE session_id = $1 ORDER BY seq ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.Role, &turn.Text, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		sess.Turns = append(sess.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turn rows: %w", err)
	}
	return sess, nil
}

// Append writes the turn batch and state snapshot in one transaction.
func (s *PostgresStore) Append(ctx context.Context, id string, turns []Turn, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, turn := range turns {
		if _, err := tx.Exec(ctx,
			"INSERT INTO turns (session_id, role, text, timestamp) VALUES ($1, $2, $3, $4)",
			id, turn.Role, turn.Text, turn.Timestamp,
		); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO sessions (id, last_state, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			last_state = EXCLUDED.last_state,
			updated_at = EXCLUDED.updated_at
	`, id, stateJSON, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if s.maxTurns > 0 {
		if _, err := tx.Exec(ctx, `
			DELETE FROM turns WHERE session_id = $1 AND seq NOT IN (
				SELECT seq FROM turns WHERE session_id = $1
				ORDER BY seq DESC LIMIT $2
			)
		`, id, s.maxTurns); err != nil {
			return fmt.Errorf("failed to trim turns: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session append: %w", err)
	}
	return nil
}
