// Package lexical implements the BM25 keyword index over indexed chunk
// contents. The index has no persistence of its own: Rebuild recomputes
// everything from the vector store, which is the source of truth for corpus
// membership.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/omisdami/docrag/internal/document"
	"github.com/omisdami/docrag/internal/vectorstore"
)

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

// Source provides the corpus to index.
type Source interface {
	Entries() []vectorstore.Entry
}

type corpusDoc struct {
	entry  vectorstore.Entry
	freq   map[string]int
	length int
}

// Index scores chunks with BM25 over lowercase whitespace tokens.
type Index struct {
	source Source

	mu       sync.RWMutex
	docs     []corpusDoc
	docFreqs map[string]int
	avgLen   float64
}

// New builds an index over src, including the initial build. Register
// Rebuild with the store's change notification to keep it synchronized.
func New(src Source) *Index {
	x := &Index{source: src}
	x.Rebuild()
	return x
}

// Rebuild recomputes the whole index from the source's current entries.
func (x *Index) Rebuild() {
	entries := x.source.Entries()

	docs := make([]corpusDoc, len(entries))
	docFreqs := make(map[string]int)
	totalLen := 0
	for i, entry := range entries {
		tokens := tokenize(entry.Content)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok := range freq {
			docFreqs[tok]++
		}
		docs[i] = corpusDoc{entry: entry, freq: freq, length: len(tokens)}
		totalLen += len(tokens)
	}
	var avgLen float64
	if len(docs) > 0 {
		avgLen = float64(totalLen) / float64(len(docs))
	}

	x.mu.Lock()
	x.docs = docs
	x.docFreqs = docFreqs
	x.avgLen = avgLen
	x.mu.Unlock()
}

// Search returns the top k chunks with positive BM25 scores for the query,
// optionally restricted to docIDs. The filter applies after top-k selection,
// matching the vector side; callers over-fetch to compensate.
func (x *Index) Search(query string, k int, docIDs []string) []document.RetrievalResult {
	terms := tokenize(query)

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.docs) == 0 || len(terms) == 0 || k <= 0 {
		return []document.RetrievalResult{}
	}

	n := float64(len(x.docs))
	scores := make([]float64, len(x.docs))
	for _, term := range terms {
		df := x.docFreqs[term]
		if df == 0 {
			continue
		}
		idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for i := range x.docs {
			tf := x.docs[i].freq[term]
			if tf == 0 {
				continue
			}
			tfN := float64(tf)
			docLen := float64(x.docs[i].length)
			scores[i] += idf * (tfN * (k1 + 1)) / (tfN + k1*(1-b+b*docLen/x.avgLen))
		}
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, c int) bool {
		if scores[order[a]] != scores[order[c]] {
			return scores[order[a]] > scores[order[c]]
		}
		return order[a] < order[c]
	})
	if k > len(order) {
		k = len(order)
	}

	var filter map[string]bool
	if len(docIDs) > 0 {
		filter = make(map[string]bool, len(docIDs))
		for _, id := range docIDs {
			filter[id] = true
		}
	}

	results := make([]document.RetrievalResult, 0, k)
	for _, i := range order[:k] {
		if scores[i] <= 0 {
			continue
		}
		entry := x.docs[i].entry
		if filter != nil && !filter[entry.Metadata.DocID] {
			continue
		}
		results = append(results, document.RetrievalResult{
			Content:  entry.Content,
			Score:    scores[i],
			Metadata: entry.Metadata,
		})
	}
	return results
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
