// Package session provides per-conversation state persistence: an ordered,
// append-only turn history plus the last committed turn-state snapshot,
// keyed by session id. Backends are pluggable behind the Store interface.
package session

import (
	"context"
	"sync"
	"time"
)

// Turn is one message of a session's history.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Roles used in the turn history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is the persisted record for one conversation. Turns are
// append-only; eviction is a store policy and never reorders what remains.
type Session struct {
	ID        string         `json:"id"`
	Turns     []Turn         `json:"turns"`
	LastState map[string]any `json:"last_state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is the session persistence contract. Load returns an empty session
// when none exists, so first-turn behavior is uniform. Append is atomic per
// session id; appends for distinct ids never block each other.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Append(ctx context.Context, id string, turns []Turn, state map[string]any) error
}

// emptySession is what Load returns for an unknown id.
func emptySession(id string) *Session {
	return &Session{ID: id}
}

// trimTurns applies the retention cap, dropping the oldest turns. Ordering
// of retained turns is preserved.
func trimTurns(turns []Turn, maxTurns int) []Turn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}

// Locks hands out one mutual-exclusion domain per session id. A caller
// holding the lock for id "a" never blocks callers for id "b".
type Locks struct {
	locks sync.Map // session id -> *sync.Mutex
}

// NewLocks creates an empty lock set.
func NewLocks() *Locks {
	return &Locks{}
}

// Acquire blocks until the session's lock is held and returns the release
// function. Queueing order follows the runtime's mutex wakeup order.
func (l *Locks) Acquire(id string) func() {
	actual, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// TryAcquire attempts the lock without blocking. It returns the release
// function and true on success, or nil and false when a turn for the same
// session is already in flight.
func (l *Locks) TryAcquire(id string) (func(), bool) {
	actual, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, false
	}
	return mu.Unlock, true
}
