package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryLexicalIndex is a small in-memory keyword ranker implementing
// LexicalSearcher. It serves local development and tests; production
// deployments plug a real lexical ranking service into the same interface.
type MemoryLexicalIndex struct {
	mu   sync.RWMutex
	docs map[string][]lexicalDoc // keyed by collection
}

type lexicalDoc struct {
	id    string
	text  string
	terms map[string]int
}

// NewMemoryLexicalIndex creates an empty index.
func NewMemoryLexicalIndex() *MemoryLexicalIndex {
	return &MemoryLexicalIndex{docs: make(map[string][]lexicalDoc)}
}

// Add indexes a document under a collection.
func (idx *MemoryLexicalIndex) Add(collection, id, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs[collection] = append(idx.docs[collection], lexicalDoc{
		id:    id,
		text:  text,
		terms: termFrequencies(text),
	})
}

// Search ranks documents by summed query-term frequency. Ordering is
// deterministic: score descending, then ID ascending.
func (idx *MemoryLexicalIndex) Search(ctx context.Context, query, collection string, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	docs := idx.docs[collection]
	idx.mu.RUnlock()

	queryTerms := termFrequencies(query)
	var hits []Hit
	for _, doc := range docs {
		score := 0.0
		for term := range queryTerms {
			score += float64(doc.terms[term])
		}
		if score > 0 {
			hits = append(hits, Hit{ID: doc.id, Score: score, Payload: doc.text})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func termFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, term := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		freq[term]++
	}
	return freq
}
