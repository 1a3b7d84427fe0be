package lexical

import (
	"math"
	"testing"

	"github.com/omisdami/docrag/internal/document"
	"github.com/omisdami/docrag/internal/vectorstore"
)

type fakeSource struct {
	entries []vectorstore.Entry
}

func (f *fakeSource) Entries() []vectorstore.Entry {
	return f.entries
}

func entry(docID, chunkID, content string) vectorstore.Entry {
	return vectorstore.Entry{
		Content: content,
		Metadata: document.ChunkMetadata{
			DocID:   docID,
			ChunkID: chunkID,
		},
	}
}

func TestIndex_MatchesQueryTerms(t *testing.T) {
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "revenue grew twelve percent this quarter"),
		entry("doc1", "c2", "the office moved to a new building"),
		entry("doc2", "c3", "revenue risk is tracked separately"),
	}}
	idx := New(src)

	results := idx.Search("revenue", 10, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	for _, r := range results {
		if r.Score <= 0 {
			t.Errorf("expected positive score, got %v for %q", r.Score, r.Content)
		}
	}
}

func TestIndex_NoMatchReturnsEmpty(t *testing.T) {
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "alpha beta gamma"),
	}}
	idx := New(src)

	if results := idx.Search("delta", 5, nil); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestIndex_CaseInsensitive(t *testing.T) {
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "Quarterly Revenue Report"),
	}}
	idx := New(src)

	if results := idx.Search("REVENUE", 5, nil); len(results) != 1 {
		t.Fatalf("expected case-insensitive match, got %d results", len(results))
	}
}

func TestIndex_RareTermRanksHigher(t *testing.T) {
	// Every chunk mentions "report"; only one mentions "forecast". A query
	// for both must rank the forecast chunk first (higher IDF).
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "annual report summary"),
		entry("doc1", "c2", "report of operations"),
		entry("doc1", "c3", "report with forecast data"),
	}}
	idx := New(src)

	results := idx.Search("report forecast", 3, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Metadata.ChunkID != "c3" {
		t.Errorf("expected chunk with rare term first, got %q", results[0].Metadata.ChunkID)
	}
}

func TestIndex_SingleDocScoreFormula(t *testing.T) {
	// One doc, one token, tf=1, docLen=avgLen=1: the TF factor reduces to 1
	// and the score is exactly ln((n-df+0.5)/(df+0.5)+1) = ln(4/3).
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "singleton"),
	}}
	idx := New(src)

	results := idx.Search("singleton", 1, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	want := math.Log(4.0 / 3.0)
	if math.Abs(results[0].Score-want) > 1e-9 {
		t.Errorf("expected score %v, got %v", want, results[0].Score)
	}
}

func TestIndex_TopKLimit(t *testing.T) {
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "budget planning"),
		entry("doc1", "c2", "budget review"),
		entry("doc1", "c3", "budget approval"),
	}}
	idx := New(src)

	if results := idx.Search("budget", 2, nil); len(results) != 2 {
		t.Errorf("expected top-2 cap, got %d results", len(results))
	}
}

func TestIndex_DocFilterAppliesAfterTopK(t *testing.T) {
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "budget planning"),
		entry("doc2", "c2", "budget review"),
	}}
	idx := New(src)

	results := idx.Search("budget", 10, []string{"doc2"})
	if len(results) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", len(results))
	}
	if results[0].Metadata.DocID != "doc2" {
		t.Errorf("expected doc2, got %q", results[0].Metadata.DocID)
	}
}

func TestIndex_RebuildTracksSource(t *testing.T) {
	src := &fakeSource{entries: []vectorstore.Entry{
		entry("doc1", "c1", "original content"),
	}}
	idx := New(src)

	if results := idx.Search("original", 5, nil); len(results) != 1 {
		t.Fatalf("expected initial build to index the corpus, got %d results", len(results))
	}

	src.entries = []vectorstore.Entry{
		entry("doc2", "c2", "replacement content"),
	}
	idx.Rebuild()

	if results := idx.Search("original", 5, nil); len(results) != 0 {
		t.Errorf("expected old corpus gone after rebuild, got %d results", len(results))
	}
	if results := idx.Search("replacement", 5, nil); len(results) != 1 {
		t.Errorf("expected new corpus indexed after rebuild, got %d results", len(results))
	}
}

func TestIndex_EmptyCorpus(t *testing.T) {
	idx := New(&fakeSource{})
	if results := idx.Search("anything", 5, nil); len(results) != 0 {
		t.Errorf("expected empty results on empty corpus, got %d", len(results))
	}
}
