package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Useful for tests and
// single-instance deployments without durability requirements.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxTurns int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store. maxTurns caps retained
// history per session; zero keeps everything.
func NewMemoryStore(maxTurns int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		maxTurns: maxTurns,
	}
}

// Load returns a copy of the most recently committed session, or an empty
// session for an unknown id.
func (s *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return emptySession(id), nil
	}

	out := &Session{
		ID:        sess.ID,
		Turns:     make([]Turn, len(sess.Turns)),
		UpdatedAt: sess.UpdatedAt,
	}
	copy(out.Turns, sess.Turns)
	if sess.LastState != nil {
		out.LastState = make(map[string]any, len(sess.LastState))
		maps.Copy(out.LastState, sess.LastState)
	}
	return out, nil
}

// Append commits a turn batch and the new state snapshot atomically.
func (s *MemoryStore) Append(ctx context.Context, id string, turns []Turn, state map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = emptySession(id)
		s.sessions[id] = sess
	}

	sess.Turns = trimTurns(append(sess.Turns, turns...), s.maxTurns)
	sess.LastState = state
	sess.UpdatedAt = time.Now()
	return nil
}
