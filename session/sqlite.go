package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on SQLite. Turns get monotonically
// increasing sequence numbers, so history ordering survives storage.
type SQLiteStore struct {
	db       *sql.DB
	maxTurns int
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteOptions configures the SQLite store.
type SQLiteOptions struct {
	Path     string
	MaxTurns int // retained turns per session, 0 = unbounded
}

// NewSQLiteStore opens (or creates) the database and ensures the schema.
func NewSQLiteStore(opts SQLiteOptions) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	store := &SQLiteStore{db: db, maxTurns: opts.MaxTurns}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			last_state TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns (session_id);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the session row and its turns in sequence order.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Session, error) {
	sess := emptySession(id)

	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_state, updated_at FROM sessions WHERE id = ?", id,
	).Scan(&stateJSON, &sess.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return sess, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &sess.LastState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, text, timestamp FROM turns WHERE session_id = ? ORDER BY seq ASC", id)
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
func (s *SQLiteStore) Append(ctx context.Context, id string, turns []Turn, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO turns (session_id, role, text, timestamp) VALUES (?, ?, ?, ?)",
			id, turn.Role, turn.Text, turn.Timestamp,
		); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, last_state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_state = excluded.last_state,
			updated_at = excluded.updated_at
	`, id, string(stateJSON), time.Now()); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if s.maxTurns > 0 {
		// Drop the oldest rows beyond the cap; remaining seq order is
		// untouched.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM turns WHERE session_id = ? AND seq NOT IN (
				SELECT seq FROM turns WHERE session_id = ?
				ORDER BY seq DESC LIMIT ?
			)
		`, id, id, s.maxTurns); err != nil {
			return fmt.Errorf("failed to trim turns: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session append: %w", err)
	}
	return nil
}
