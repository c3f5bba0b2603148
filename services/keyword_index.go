package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/internal/vectorindex"
)

// BM25 Okapi parameters
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// KeywordScore pairs an entry ID with its BM25 score
type KeywordScore struct {
	ID    string
	Score float64
}

// bm25Snapshot is an immutable index over one generation of the corpus.
// Queries read whichever snapshot was current when they started.
type bm25Snapshot struct {
	ids        []string
	termFreqs  []map[string]int
	docLens    []int
	avgDocLen  float64
	idf        map[string]float64
	corpusSize int
}

// KeywordIndex is a BM25 Okapi index over all text entries. The whole
// index is rebuilt after each ingestion and swapped in atomically.
type KeywordIndex struct {
	index    vectorindex.Index
	snapshot atomic.Pointer[bm25Snapshot]
}

func NewKeywordIndex(index vectorindex.Index) *KeywordIndex {
	return &KeywordIndex{index: index}
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Rebuild reloads every text entry from the vector index and rebuilds
// the BM25 snapshot from scratch.
func (k *KeywordIndex) Rebuild(ctx context.Context) error {
	entries, err := k.index.List(ctx, vectorindex.Filter{"type": "text"})
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		k.snapshot.Store(nil)
		logger.Debug("Keyword index cleared, no text entries")
		return nil
	}

	snap := buildSnapshot(entries)
	k.snapshot.Store(snap)
	logger.Info("Keyword index rebuilt", "documents", snap.corpusSize)
	return nil
}

func buildSnapshot(entries []vectorindex.Entry) *bm25Snapshot {
	snap := &bm25Snapshot{
		ids:        make([]string, len(entries)),
		termFreqs:  make([]map[string]int, len(entries)),
		docLens:    make([]int, len(entries)),
		idf:        make(map[string]float64),
		corpusSize: len(entries),
	}

	df := make(map[string]int)
	totalLen := 0
	for i, e := range entries {
		tokens := tokenize(e.Text)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for term := range freqs {
			df[term]++
		}
		snap.ids[i] = e.ID
		snap.termFreqs[i] = freqs
		snap.docLens[i] = len(tokens)
		totalLen += len(tokens)
	}
	snap.avgDocLen = float64(totalLen) / float64(len(entries))

	// Okapi idf can go negative for very common terms; those get floored
	// to epsilon times the average idf.
	n := float64(snap.corpusSize)
	var idfSum float64
	var negative []string
	for term, freq := range df {
		idf := math.Log((n - float64(freq) + 0.5) / (float64(freq) + 0.5))
		snap.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	averageIDF := idfSum / float64(len(snap.idf))
	eps := bm25Epsilon * averageIDF
	for _, term := range negative {
		snap.idf[term] = eps
	}

	return snap
}

// Ready reports whether a snapshot exists. Queries against an empty
// corpus skip the keyword leg entirely.
func (k *KeywordIndex) Ready() bool {
	return k.snapshot.Load() != nil
}

// TopN scores every document against the query tokens and returns the
// n best. Ties keep corpus order, so results are deterministic.
func (k *KeywordIndex) TopN(query string, n int) []KeywordScore {
	snap := k.snapshot.Load()
	if snap == nil || n <= 0 {
		return nil
	}

	tokens := tokenize(query)
	scores := make([]KeywordScore, snap.corpusSize)
	for i := 0; i < snap.corpusSize; i++ {
		scores[i] = KeywordScore{ID: snap.ids[i], Score: snap.score(tokens, i)}
	}

	sort.SliceStable(scores, func(a, b int) bool { return scores[a].Score > scores[b].Score })

	if len(scores) > n {
		scores = scores[:n]
	}
	return scores
}

func (s *bm25Snapshot) score(queryTokens []string, doc int) float64 {
	var score float64
	norm := bm25K1 * (1 - bm25B + bm25B*float64(s.docLens[doc])/s.avgDocLen)
	for _, term := range queryTokens {
		freq := float64(s.termFreqs[doc][term])
		if freq == 0 {
			continue
		}
		score += s.idf[term] * (freq * (bm25K1 + 1)) / (freq + norm)
	}
	return score
}
