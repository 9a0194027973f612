package retrieval

import "sort"

// Merge combines the hits of the two strategies for one collection into a
// ranked candidate list. The algorithm is deterministic: identical inputs
// always yield an identical ordered output.
//
// Each strategy's scores are normalized to [0,1] independently by dividing
// by the strategy's maximum positive score (negative scores clamp to zero).
// A candidate returned by only one strategy contributes zero for the
// missing strategy. The combined score is
//
//	combined = weights.Lexical*normLexical + weights.Semantic*normSemantic
//
// and ties break by ascending candidate ID.
func Merge(collection string, lexical, semantic []Hit, weights Weights) []Candidate {
	lexical = dedupe(lexical)
	semantic = dedupe(semantic)

	lexNorm := normalize(lexical)
	semNorm := normalize(semantic)

	byID := make(map[string]*Candidate, len(lexical)+len(semantic))

	for i, hit := range lexical {
		score := hit.Score
		byID[hit.ID] = &Candidate{
			ID:            hit.ID,
			Collection:    collection,
			LexicalScore:  &score,
			CombinedScore: weights.Lexical * lexNorm[i],
			Sources:       []string{StrategyLexical},
			Payload:       hit.Payload,
		}
	}

	for i, hit := range semantic {
		score := hit.Score
		if c, ok := byID[hit.ID]; ok {
			c.SemanticScore = &score
			c.CombinedScore += weights.Semantic * semNorm[i]
			c.Sources = append(c.Sources, StrategySemantic)
			if c.Payload == "" {
				c.Payload = hit.Payload
			}
			continue
		}
		byID[hit.ID] = &Candidate{
			ID:            hit.ID,
			Collection:    collection,
			SemanticScore: &score,
			CombinedScore: weights.Semantic * semNorm[i],
			Sources:       []string{StrategySemantic},
			Payload:       hit.Payload,
		}
	}

	merged := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, *c)
	}
	sortCandidates(merged)
	return merged
}

// sortCandidates orders by descending combined score, then ascending ID.
func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		return candidates[i].ID < candidates[j].ID
	})
}

// normalize maps a strategy's scores to [0,1] by dividing by the maximum
// positive score. Negative scores clamp to zero. An all-nonpositive list
// normalizes to zeros.
func normalize(hits []Hit) []float64 {
	out := make([]float64, len(hits))
	max := 0.0
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max == 0 {
		return out
	}
	for i, h := range hits {
		if h.Score > 0 {
			out[i] = h.Score / max
		}
	}
	return out
}

// dedupe keeps one hit per ID within a single strategy list, preferring the
// higher score and, on equal scores, the earlier occurrence.
func dedupe(hits []Hit) []Hit {
	seen := make(map[string]int, len(hits))
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if idx, ok := seen[h.ID]; ok {
			if h.Score > out[idx].Score {
				out[idx] = h
			}
			continue
		}
		seen[h.ID] = len(out)
		out = append(out, h)
	}
	return out
}
