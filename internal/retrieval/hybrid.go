// Package retrieval composes vector and lexical search into one ranked,
// deduplicated, diversity-aware result list.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/omisdami/docrag/internal/document"
)

// ErrEmptyQuery is returned for empty or whitespace-only queries.
var ErrEmptyQuery = errors.New("query must not be empty")

// VectorSearcher is the dense side of hybrid retrieval.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int, docIDs []string) ([]document.RetrievalResult, error)
}

// LexicalSearcher is the sparse side.
type LexicalSearcher interface {
	Search(query string, k int, docIDs []string) []document.RetrievalResult
	Rebuild()
}

// Config weights the two retrieval signals.
type Config struct {
	Alpha     float64 // vector share of the merged score, lexical gets 1-Alpha
	MMRLambda float64 // relevance vs diversity balance in MMR selection
}

// DefaultConfig returns the standard weighting.
func DefaultConfig() Config {
	return Config{Alpha: 0.5, MMRLambda: 0.7}
}

// Retriever is the hybrid retriever.
type Retriever struct {
	vector  VectorSearcher
	lexical LexicalSearcher
	cfg     Config
}

// New creates a hybrid retriever over the two indexes.
func New(vector VectorSearcher, lexical LexicalSearcher, cfg Config) *Retriever {
	return &Retriever{vector: vector, lexical: lexical, cfg: cfg}
}

// Retrieve returns the final k results for the query: both indexes are
// over-fetched at 2k, scores are min-max normalized per set, merged by
// chunk identity with the configured alpha, and MMR picks a diverse top k.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, docIDs []string) ([]document.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return []document.RetrievalResult{}, nil
	}

	vecResults, err := r.vector.Search(ctx, query, 2*k, docIDs)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	lexResults := r.lexical.Search(query, 2*k, docIDs)

	normalizeScores(vecResults)
	normalizeScores(lexResults)

	combined := r.merge(vecResults, lexResults)
	return r.applyMMR(combined, k), nil
}

// UpdateIndex forces a lexical rebuild. Routine synchronization happens via
// the vector store's change notification; this remains for manual refresh.
func (r *Retriever) UpdateIndex() {
	r.lexical.Rebuild()
}

// normalizeScores rescales a result set's scores to [0, 1] in place. A set
// with one distinct value maps every member to 1.0.
func normalizeScores(results []document.RetrievalResult) {
	if len(results) == 0 {
		return
	}
	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	if hi == lo {
		for i := range results {
			results[i].Score = 1.0
		}
		return
	}
	for i := range results {
		results[i].Score = (results[i].Score - lo) / (hi - lo)
	}
}

// merge combines the two normalized sets by chunk identity. A chunk seen by
// only one index contributes 0 for the other side.
func (r *Retriever) merge(vecResults, lexResults []document.RetrievalResult) []document.RetrievalResult {
	type merged struct {
		result  document.RetrievalResult
		vector  float64
		lexical float64
	}

	// Key on doc id + chunk id: chunk ids repeat across documents.
	key := func(res document.RetrievalResult) string {
		return res.Metadata.DocID + "/" + res.Metadata.ChunkID
	}

	byID := make(map[string]*merged, len(vecResults)+len(lexResults))
	var order []string
	for _, res := range vecResults {
		id := key(res)
		if m, ok := byID[id]; ok {
			m.vector = res.Score
			m.result = res
			continue
		}
		byID[id] = &merged{result: res, vector: res.Score}
		order = append(order, id)
	}
	for _, res := range lexResults {
		id := key(res)
		if m, ok := byID[id]; ok {
			m.lexical = res.Score
			continue
		}
		byID[id] = &merged{result: res, lexical: res.Score}
		order = append(order, id)
	}

	combined := make([]document.RetrievalResult, 0, len(order))
	for _, id := range order {
		m := byID[id]
		res := m.result
		res.Score = r.cfg.Alpha*m.vector + (1-r.cfg.Alpha)*m.lexical
		combined = append(combined, res)
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Score > combined[j].Score
	})
	return combined
}

// applyMMR greedily selects k results balancing relevance against textual
// overlap with what is already selected. Small candidate sets skip MMR.
func (r *Retriever) applyMMR(results []document.RetrievalResult, k int) []document.RetrievalResult {
	if len(results) <= k {
		return results
	}

	selected := make([]document.RetrievalResult, 0, k)
	remaining := append([]document.RetrievalResult(nil), results...)

	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := 0.0
		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if sim := jaccard(cand.Content, sel.Content); sim > maxSim {
					maxSim = sim
				}
			}
			score := r.cfg.MMRLambda*cand.Score - (1-r.cfg.MMRLambda)*maxSim
			if i == 0 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// jaccard measures word-set overlap between two texts.
func jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	inter := 0
	for w := range wordsA {
		if wordsB[w] {
			inter++
		}
	}
	union := len(wordsA) + len(wordsB) - inter
	return float64(inter) / float64(union)
}

func wordSet(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
