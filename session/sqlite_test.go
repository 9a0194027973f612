package session

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T, maxTurns int) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(SQLiteOptions{Path: path, MaxTurns: maxTurns})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, 0)

	sess, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, sess.Turns)

	turns := []Turn{
		{Role: RoleUser, Text: "what should I learn next?", Timestamp: time.Now().UTC()},
		{Role: RoleAssistant, Text: "start with fundamentals", Timestamp: time.Now().UTC()},
	}
	require.NoError(t, store.Append(ctx, "s1", turns, map[string]any{"answer": "fundamentals"}))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 2)
	assert.Equal(t, RoleUser, loaded.Turns[0].Role)
	assert.Equal(t, "what should I learn next?", loaded.Turns[0].Text)
	assert.Equal(t, "fundamentals", loaded.LastState["answer"])
}

func TestSQLiteStoreOrderingAcrossAppends(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, 0)

	for i := 0; i < 5; i++ {
		turn := Turn{Role: RoleUser, Text: fmt.Sprintf("turn-%d", i), Timestamp: time.Now().UTC()}
		require.NoError(t, store.Append(ctx, "s1", []Turn{turn}, nil))
	}

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 5)
	for i, turn := range loaded.Turns {
		assert.Equal(t, fmt.Sprintf("turn-%d", i), turn.Text)
	}
}

func TestSQLiteStoreTrim(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, 2)

	for i := 0; i < 5; i++ {
		turn := Turn{Role: RoleUser, Text: fmt.Sprintf("turn-%d", i), Timestamp: time.Now().UTC()}
		require.NoError(t, store.Append(ctx, "s1", []Turn{turn}, nil))
	}

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 2)
	assert.Equal(t, "turn-3", loaded.Turns[0].Text)
	assert.Equal(t, "turn-4", loaded.Turns[1].Text)
}

func TestSQLiteStoreSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, 0)

	require.NoError(t, store.Append(ctx, "a", []Turn{{Role: RoleUser, Text: "for a", Timestamp: time.Now().UTC()}}, nil))
	require.NoError(t, store.Append(ctx, "b", []Turn{{Role: RoleUser, Text: "for b", Timestamp: time.Now().UTC()}}, nil))

	loadedA, err := store.Load(ctx, "a")
	require.NoError(t, err)
	require.Len(t, loadedA.Turns, 1)
	assert.Equal(t, "for a", loadedA.Turns[0].Text)
}
