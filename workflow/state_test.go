package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFieldOwnership(t *testing.T) {
	s := NewState()

	require.NoError(t, s.Set("intent_analysis", "intent", "career"))

	// The owning step may overwrite its own field.
	require.NoError(t, s.Set("intent_analysis", "intent", "general"))

	// Another step may not.
	err := s.Set("retrieve_data", "intent", "hijacked")
	require.Error(t, err)

	v, ok := s.Get("intent")
	require.True(t, ok)
	assert.Equal(t, "general", v)
}

func TestStateStatusTransitions(t *testing.T) {
	s := NewState()
	assert.Equal(t, StatusNormal, s.Status())

	// Only terminal values are valid transitions.
	assert.Error(t, s.Fail(StatusNormal))

	require.NoError(t, s.Fail(StatusValidationFailed))
	assert.Equal(t, StatusValidationFailed, s.Status())

	// Terminal status never transitions again.
	assert.Error(t, s.Fail(StatusFailed))
	assert.Equal(t, StatusValidationFailed, s.Status())
}

func TestStateFieldsSnapshot(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Set("a", "x", 1))

	snap := s.Fields()
	snap["x"] = 99
	snap["y"] = "added"

	v, _ := s.Get("x")
	assert.Equal(t, 1, v)
	_, ok := s.Get("y")
	assert.False(t, ok)
}

func TestStateGetString(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Set("a", "text", "hello"))
	require.NoError(t, s.Set("a", "count", 3))

	assert.Equal(t, "hello", s.GetString("text"))
	assert.Equal(t, "", s.GetString("count"))
	assert.Equal(t, "", s.GetString("missing"))
}

func TestStateErrorsAndLog(t *testing.T) {
	s := NewState()
	s.AddError("vector timeout")
	s.AddError("lexical unavailable")

	assert.Equal(t, []string{"vector timeout", "lexical unavailable"}, s.Errors())

	s.appendLog(StepLog{Step: "retrieve_data"})
	logs := s.Log()
	require.Len(t, logs, 1)
	assert.Equal(t, "retrieve_data", logs[0].Step)
}
