package services

import (
	"math"
	"sort"
	"time"
)

// rrfK is the standard Reciprocal Rank Fusion constant
const rrfK = 60

// Temporal rerank weights: fused relevance vs recency
const (
	rrfWeight       = 0.7
	decayWeight     = 0.3
	decayHalfLifeHr = 24.0
)

// ScoredID is an entry ID with a ranking score, used across the fusion
// and rerank stages.
type ScoredID struct {
	ID    string
	Score float64
}

// ReciprocalRankFusion merges two ranked lists. Each entry contributes
// 1/(k + rank + 1) per list it appears in, with zero-based ranks. The
// result is sorted by fused score descending; ties keep insertion
// order, so the output is deterministic.
func ReciprocalRankFusion(semanticResults, keywordResults []ScoredID) []ScoredID {
	scores := make(map[string]float64)
	var order []string

	add := func(results []ScoredID) {
		for rank, r := range results {
			if _, seen := scores[r.ID]; !seen {
				order = append(order, r.ID)
			}
			scores[r.ID] += 1 / float64(rrfK+rank+1)
		}
	}
	add(semanticResults)
	add(keywordResults)

	fused := make([]ScoredID, 0, len(order))
	for _, id := range order {
		fused = append(fused, ScoredID{ID: id, Score: scores[id]})
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

// TemporalDecay maps an entry age to (0,1], halving roughly every day
func TemporalDecay(timestampUnix float64, now time.Time) float64 {
	ageHours := (float64(now.Unix()) - timestampUnix) / 3600
	return math.Exp(-ageHours / decayHalfLifeHr)
}

// RerankWithDecay blends fused scores with recency. Entries missing a
// timestamp are treated as saved now.
func RerankWithDecay(candidates []ScoredID, timestamps map[string]float64, now time.Time) []ScoredID {
	reranked := make([]ScoredID, 0, len(candidates))
	for _, c := range candidates {
		ts, ok := timestamps[c.ID]
		if !ok {
			ts = float64(now.Unix())
		}
		final := rrfWeight*c.Score + decayWeight*TemporalDecay(ts, now)
		reranked = append(reranked, ScoredID{ID: c.ID, Score: final})
	}

	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	return reranked
}
