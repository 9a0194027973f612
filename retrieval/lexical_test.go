package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLexicalIndexSearch(t *testing.T) {
	idx := NewMemoryLexicalIndex()
	idx.Add("career_cases", "case-1", "backend engineer moved to data engineering")
	idx.Add("career_cases", "case-2", "frontend engineer, then product manager")
	idx.Add("career_cases", "case-3", "sales career with no engineering background")
	idx.Add("education_courses", "course-1", "data engineering bootcamp")

	hits, err := idx.Search(context.Background(), "data engineering", "career_cases", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "case-1", hits[0].ID) // matches both terms

	// Collections do not leak into each other.
	for _, h := range hits {
		assert.NotEqual(t, "course-1", h.ID)
	}
}

func TestMemoryLexicalIndexLimit(t *testing.T) {
	idx := NewMemoryLexicalIndex()
	idx.Add("c", "1", "go go go")
	idx.Add("c", "2", "go go")
	idx.Add("c", "3", "go")

	hits, err := idx.Search(context.Background(), "go", "c", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "1", hits[0].ID)
	assert.Equal(t, "2", hits[1].ID)
}

func TestMemoryLexicalIndexNoMatch(t *testing.T) {
	idx := NewMemoryLexicalIndex()
	idx.Add("c", "1", "completely unrelated text")

	hits, err := idx.Search(context.Background(), "quantum chromodynamics", "c", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryLexicalIndexHonorsContext(t *testing.T) {
	idx := NewMemoryLexicalIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, "q", "c", 5)
	assert.ErrorIs(t, err, context.Canceled)
}
