// Package retrieval implements hybrid retrieval over named collections: a
// lexical ranking strategy and a vector-similarity strategy are queried
// concurrently and merged into one deterministic ranking.
package retrieval

import "context"

// Hit is one raw result from a single retrieval strategy.
type Hit struct {
	ID      string
	Score   float64
	Payload string
}

// LexicalSearcher is the keyword-ranking collaborator contract.
type LexicalSearcher interface {
	Search(ctx context.Context, query, collection string, limit int) ([]Hit, error)
}

// VectorSearcher is the vector-similarity collaborator contract.
type VectorSearcher interface {
	Search(ctx context.Context, query, collection string, limit int) ([]Hit, error)
}

// Strategy names used for provenance attribution.
const (
	StrategyLexical  = "lexical"
	StrategySemantic = "semantic"
)

// Candidate is one merged retrieval result. CombinedScore is computed once
// by Merge and never mutated afterwards; IDs are unique within one merged
// result set.
type Candidate struct {
	ID            string
	Collection    string
	LexicalScore  *float64
	SemanticScore *float64
	CombinedScore float64
	// Sources lists the strategies that contributed this candidate.
	Sources []string
	Payload string
}

// Weights are the per-collection merge weights. They are applied to
// normalized scores, so the two strategies' raw scales never need to be
// commensurable.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights is the documented default split.
var DefaultWeights = Weights{Lexical: 0.5, Semantic: 0.5}
