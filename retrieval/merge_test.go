package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDisjointStrategies(t *testing.T) {
	lexical := []Hit{{ID: "a", Score: 0.9, Payload: "case a"}}
	semantic := []Hit{{ID: "b", Score: 0.8, Payload: "case b"}}

	merged := Merge("career_cases", lexical, semantic, Weights{Lexical: 0.7, Semantic: 0.3})
	require.Len(t, merged, 2)

	// Both survive, ranked by their weighted contributions: the
	// lexical-only candidate normalizes to 1.0*0.7, the semantic-only
	// one to 1.0*0.3.
	assert.Equal(t, "a", merged[0].ID)
	assert.InDelta(t, 0.7, merged[0].CombinedScore, 1e-9)
	assert.Equal(t, []string{StrategyLexical}, merged[0].Sources)
	require.NotNil(t, merged[0].LexicalScore)
	assert.Equal(t, 0.9, *merged[0].LexicalScore)
	assert.Nil(t, merged[0].SemanticScore)

	assert.Equal(t, "b", merged[1].ID)
	assert.InDelta(t, 0.3, merged[1].CombinedScore, 1e-9)
	assert.Equal(t, []string{StrategySemantic}, merged[1].Sources)
}

func TestMergeSharedID(t *testing.T) {
	lexical := []Hit{
		{ID: "x", Score: 2.0, Payload: "doc x"},
		{ID: "y", Score: 1.0, Payload: "doc y"},
	}
	semantic := []Hit{
		{ID: "x", Score: 0.9},
		{ID: "z", Score: 0.45, Payload: "doc z"},
	}

	merged := Merge("career_cases", lexical, semantic, DefaultWeights)
	require.Len(t, merged, 3)

	// x got both strategies: 0.5*1.0 + 0.5*1.0.
	assert.Equal(t, "x", merged[0].ID)
	assert.InDelta(t, 1.0, merged[0].CombinedScore, 1e-9)
	assert.ElementsMatch(t, []string{StrategyLexical, StrategySemantic}, merged[0].Sources)
	require.NotNil(t, merged[0].LexicalScore)
	require.NotNil(t, merged[0].SemanticScore)

	// y: 0.5*(1/2); z: 0.5*(0.45/0.9) = 0.25 each, tie broken by ID.
	assert.Equal(t, "y", merged[1].ID)
	assert.Equal(t, "z", merged[2].ID)
	assert.InDelta(t, merged[1].CombinedScore, merged[2].CombinedScore, 1e-9)
}

func TestMergeDeterminism(t *testing.T) {
	lexical := []Hit{
		{ID: "d3", Score: 1.0},
		{ID: "d1", Score: 1.0},
		{ID: "d2", Score: 1.0},
	}
	semantic := []Hit{
		{ID: "d5", Score: 0.7},
		{ID: "d4", Score: 0.7},
	}

	first := Merge("c", lexical, semantic, DefaultWeights)
	for i := 0; i < 50; i++ {
		again := Merge("c", lexical, semantic, DefaultWeights)
		assert.Equal(t, first, again)
	}

	// Equal combined scores order by ascending ID.
	assert.Equal(t, "d1", first[0].ID)
	assert.Equal(t, "d2", first[1].ID)
	assert.Equal(t, "d3", first[2].ID)
	assert.Equal(t, "d4", first[3].ID)
	assert.Equal(t, "d5", first[4].ID)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge("c", nil, nil, DefaultWeights))

	merged := Merge("c", []Hit{{ID: "only", Score: 3}}, nil, DefaultWeights)
	require.Len(t, merged, 1)
	assert.InDelta(t, 0.5, merged[0].CombinedScore, 1e-9)
}

func TestMergeClampsNegativeScores(t *testing.T) {
	lexical := []Hit{
		{ID: "pos", Score: 2.0},
		{ID: "neg", Score: -1.0},
	}

	merged := Merge("c", lexical, nil, DefaultWeights)
	require.Len(t, merged, 2)
	assert.Equal(t, "pos", merged[0].ID)
	assert.Equal(t, 0.0, merged[1].CombinedScore)
}

func TestMergeDedupesWithinStrategy(t *testing.T) {
	lexical := []Hit{
		{ID: "dup", Score: 1.0, Payload: "low"},
		{ID: "dup", Score: 3.0, Payload: "high"},
	}

	merged := Merge("c", lexical, nil, DefaultWeights)
	require.Len(t, merged, 1)
	assert.Equal(t, "high", merged[0].Payload)
	assert.Equal(t, 3.0, *merged[0].LexicalScore)
}
