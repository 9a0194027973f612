package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Embedder turns text into a query embedding. The embedding model itself is
// an external collaborator.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PgxQuerier is the subset of pgxpool.Pool the searcher needs.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgvectorSearcher implements VectorSearcher over a Postgres table with a
// pgvector embedding column. Expected schema:
//
//	CREATE TABLE documents (
//	    id         TEXT PRIMARY KEY,
//	    collection TEXT NOT NULL,
//	    content    TEXT NOT NULL,
//	    embedding  VECTOR(n)
//	);
type PgvectorSearcher struct {
	pool      PgxQuerier
	embedder  Embedder
	tableName string
}

// NewPgvectorSearcher creates a searcher over an existing pool.
func NewPgvectorSearcher(pool PgxQuerier, embedder Embedder, tableName string) *PgvectorSearcher {
	if tableName == "" {
		tableName = "documents"
	}
	return &PgvectorSearcher{pool: pool, embedder: embedder, tableName: tableName}
}

// Connect opens a pool and returns a searcher over it.
func Connect(ctx context.Context, connString string, embedder Embedder, tableName string) (*PgvectorSearcher, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPgvectorSearcher(pool, embedder, tableName), nil
}

// Search embeds the query and ranks documents by cosine similarity.
func (s *PgvectorSearcher) Search(ctx context.Context, query, collection string, limit int) ([]Hit, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT id, content, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, s.tableName)

	rows, err := s.pool.Query(ctx, sql, pgvector.NewVector(embedding), collection, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.ID, &hit.Payload, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan vector search row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vector search rows: %w", err)
	}
	return hits, nil
}
