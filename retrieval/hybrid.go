package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/navigator-ai/careerflow/config"
	"github.com/navigator-ai/careerflow/log"
)

// SoftError records a degraded strategy call. Soft errors never fail the
// retrieval; the affected strategy simply contributes an empty list.
type SoftError struct {
	Collection string
	Strategy   string
	Err        error
}

func (e SoftError) Error() string {
	return fmt.Sprintf("%s search on %s failed: %v", e.Strategy, e.Collection, e.Err)
}

func (e SoftError) Unwrap() error { return e.Err }

// Hybrid fans a query out to the lexical and vector strategies per
// collection and merges the results.
type Hybrid struct {
	lexical LexicalSearcher
	vector  VectorSearcher
	cfg     config.Retrieval
	logger  log.Logger
}

// NewHybrid creates a hybrid retriever over the two strategy backends.
func NewHybrid(lexical LexicalSearcher, vector VectorSearcher, cfg config.Retrieval) *Hybrid {
	return &Hybrid{
		lexical: lexical,
		vector:  vector,
		cfg:     cfg,
		logger:  log.Default(),
	}
}

// SetLogger overrides the retriever's logger.
func (h *Hybrid) SetLogger(logger log.Logger) {
	h.logger = logger
}

// Retrieve queries every named collection with both strategies and returns
// the top-k merged candidates plus any soft errors encountered. The two
// strategy calls for one collection run concurrently, each bounded by its
// own timeout, so latency is bounded by the slower of the two rather than
// their sum. A failed or timed-out strategy degrades to an empty list.
func (h *Hybrid) Retrieve(ctx context.Context, query string, collections []string, k int) ([]Candidate, []SoftError) {
	if k <= 0 {
		k = h.cfg.TopK
	}

	var merged []Candidate
	var soft []SoftError

	for _, collection := range collections {
		lexHits, semHits, errs := h.search(ctx, query, collection, k)
		soft = append(soft, errs...)

		wLex, wSem := h.cfg.Weights(collection)
		candidates := Merge(collection, lexHits, semHits, Weights{Lexical: wLex, Semantic: wSem})

		if h.cfg.PerCollectionTopK && len(candidates) > k {
			candidates = candidates[:k]
		}
		merged = append(merged, candidates...)
	}

	sortCandidates(merged)
	if !h.cfg.PerCollectionTopK && len(merged) > k {
		merged = merged[:k]
	}
	return merged, soft
}

// search issues the two strategy calls for one collection concurrently and
// joins them.
func (h *Hybrid) search(ctx context.Context, query, collection string, limit int) (lexHits, semHits []Hit, soft []SoftError) {
	type result struct {
		strategy string
		hits     []Hit
		err      error
	}

	results := make(chan result, 2)

	run := func(strategy string, searcher func(context.Context, string, string, int) ([]Hit, error)) {
		callCtx, cancel := context.WithTimeout(ctx, h.callTimeout())
		defer cancel()
		hits, err := searcher(callCtx, query, collection, limit)
		results <- result{strategy: strategy, hits: hits, err: err}
	}

	go run(StrategyLexical, h.lexical.Search)
	go run(StrategySemantic, h.vector.Search)

	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			se := SoftError{Collection: collection, Strategy: res.strategy, Err: res.err}
			h.logger.Warnf("retrieval degraded: %v", se)
			soft = append(soft, se)
			continue
		}
		if res.strategy == StrategyLexical {
			lexHits = res.hits
		} else {
			semHits = res.hits
		}
	}
	return lexHits, semHits, soft
}

func (h *Hybrid) callTimeout() time.Duration {
	if h.cfg.CallTimeout > 0 {
		return h.cfg.CallTimeout
	}
	return 3 * time.Second
}
