package workflow

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Status is the turn-level workflow status. It starts at StatusNormal and
// may transition only to a terminal failure value, never back.
type Status string

const (
	// StatusNormal is the initial status of every turn.
	StatusNormal Status = "normal"

	// StatusValidationFailed marks a turn rejected by the validation gate.
	StatusValidationFailed Status = "validation_failed"

	// StatusFailed marks a turn aborted by a critical step failure.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is a terminal failure value.
func (s Status) Terminal() bool {
	return s == StatusValidationFailed || s == StatusFailed
}

// StepLog records one step execution for the processing log.
type StepLog struct {
	Step     string        `json:"step"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"err,omitempty"`
}

// State is the per-turn state shared by all steps of one turn. Fields are
// write-once-per-step: the first step to set a field owns it, and no other
// step may overwrite it. State is created fresh for each turn and folded
// into the session after the turn completes.
type State struct {
	mu     sync.Mutex
	fields map[string]any
	owners map[string]string

	status   Status
	errors   []string
	stepLogs []StepLog
}

// NewState returns an empty turn state with StatusNormal.
func NewState() *State {
	return &State{
		fields: make(map[string]any),
		owners: make(map[string]string),
		status: StatusNormal,
	}
}

// Set records a field value on behalf of a step. A field already owned by a
// different step cannot be overwritten; that indicates cross-step
// interference and is reported as an error.
func (s *State) Set(step, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[key]; ok && owner != step {
		return fmt.Errorf("field %q is owned by step %q, step %q may not set it", key, owner, step)
	}
	s.owners[key] = step
	s.fields[key] = value
	return nil
}

// Get returns a field value.
func (s *State) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.fields[key]
	return v, ok
}

// GetString returns a field as a string, or "" when absent or mistyped.
func (s *State) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Fields returns a snapshot of all fields set so far.
func (s *State) Fields() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.fields))
	maps.Copy(out, s.fields)
	return out
}

// Status returns the current workflow status.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Fail transitions the status to a terminal failure value. Transitioning
// out of a terminal value, or to StatusNormal, is rejected.
func (s *State) Fail(status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("%q is not a terminal status", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return fmt.Errorf("status is already terminal (%q), cannot transition to %q", s.status, status)
	}
	s.status = status
	return nil
}

// AddError appends a soft-failure message for observability. Soft errors
// never abort the turn; they are surfaced in the result envelope.
func (s *State) AddError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, msg)
}

// Errors returns the accumulated error messages.
func (s *State) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.errors))
	copy(out, s.errors)
	return out
}

func (s *State) appendLog(entry StepLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepLogs = append(s.stepLogs, entry)
}

// Log returns the processing log in execution order.
func (s *State) Log() []StepLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepLog, len(s.stepLogs))
	copy(out, s.stepLogs)
	return out
}
