// Package vectorstore implements the embedding index. Chunks are embedded in
// batches, unit-normalized and searched brute-force by inner product. The
// index persists as a binary vector blob plus a JSON metadata sidecar,
// rewritten atomically after every mutation.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/omisdami/docrag/internal/document"
)

// ErrIndexCorruption marks on-disk index state that could not be restored.
// The store logs it and starts empty rather than failing startup.
var ErrIndexCorruption = errors.New("vector index corruption")

// StoreType names the index implementation in status reports.
const StoreType = "flat"

const (
	indexFile    = "index.bin"
	metadataFile = "metadata.json"
)

// Embedder vectorizes text for indexing and search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Entry is one indexed chunk as persisted in the metadata sidecar. Integer
// ids are positional: entry i holds the vector at row i.
type Entry struct {
	Content  string                 `json:"content"`
	Metadata document.ChunkMetadata `json:"metadata"`
}

// Stats summarizes index contents.
type Stats struct {
	TotalChunks int     `json:"total_chunks"`
	DocCount    int     `json:"doc_count"`
	IndexSizeMB float64 `json:"index_size_mb"`
}

// LoadReport records the outcome of opening the on-disk index.
type LoadReport struct {
	Loaded int
	Err    error
}

// Store is the vector index. Add and Delete take the write lock, Search and
// Stats the read lock. Change listeners run outside any lock.
type Store struct {
	embedder Embedder
	dir      string
	log      *slog.Logger

	mu      sync.RWMutex
	vectors [][]float32
	entries []Entry
	dim     int

	listenerMu sync.Mutex
	listeners  []func()

	loadReport LoadReport
}

// New opens the store at dir, restoring any persisted index. Corrupt state
// is logged and discarded; the error is observable via LoadStatus.
func New(dir string, embedder Embedder, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	s := &Store{embedder: embedder, dir: dir, log: log}
	s.load()
	return s, nil
}

// OnChange registers fn to run after every successful index mutation.
func (s *Store) OnChange(fn func()) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

// Add embeds the chunks in one batch and appends them to the index. The
// first insert fixes the vector dimension; later inserts must match it.
func (s *Store) Add(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for _, vec := range vectors {
		normalize(vec)
	}

	s.mu.Lock()
	dim := s.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for _, vec := range vectors {
		if len(vec) != dim {
			s.mu.Unlock()
			return fmt.Errorf("embedding dimension %d does not match index dimension %d", len(vec), dim)
		}
	}
	oldVectors, oldEntries, oldDim := len(s.vectors), len(s.entries), s.dim
	s.dim = dim
	s.vectors = append(s.vectors, vectors...)
	for _, c := range chunks {
		s.entries = append(s.entries, Entry{Content: c.Content, Metadata: c.Metadata})
	}
	if err := s.persistLocked(); err != nil {
		// Undo the append so a retried Add cannot double-insert.
		s.vectors = s.vectors[:oldVectors]
		s.entries = s.entries[:oldEntries]
		s.dim = oldDim
		s.mu.Unlock()
		return fmt.Errorf("persist index: %w", err)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Search embeds the query and returns the top k chunks by inner product,
// optionally restricted to docIDs. The filter applies after ranking, so
// fewer than k results may come back; callers over-fetch to compensate.
func (s *Store) Search(ctx context.Context, query string, k int, docIDs []string) ([]document.RetrievalResult, error) {
	s.mu.RLock()
	total := len(s.vectors)
	s.mu.RUnlock()
	if total == 0 || k <= 0 {
		return []document.RetrievalResult{}, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	normalize(qvec)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return []document.RetrievalResult{}, nil
	}
	if len(qvec) != s.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(qvec), s.dim)
	}

	type scored struct {
		id    int
		score float64
	}
	scores := make([]scored, len(s.vectors))
	for i, vec := range s.vectors {
		scores[i] = scored{id: i, score: dot(qvec, vec)}
	}
	sort.Slice(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return scores[a].id < scores[b].id
	})

	n := k
	if n > len(scores) {
		n = len(scores)
	}

	var filter map[string]bool
	if len(docIDs) > 0 {
		filter = make(map[string]bool, len(docIDs))
		for _, id := range docIDs {
			filter[id] = true
		}
	}

	results := make([]document.RetrievalResult, 0, n)
	for _, sc := range scores[:n] {
		entry := s.entries[sc.id]
		if filter != nil && !filter[entry.Metadata.DocID] {
			continue
		}
		results = append(results, document.RetrievalResult{
			Content:  entry.Content,
			Score:    sc.score,
			Metadata: entry.Metadata,
		})
	}
	return results, nil
}

// Delete removes all chunks of the given documents and compacts ids from 0.
// Retained rows keep their vectors; nothing is re-embedded.
func (s *Store) Delete(docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(docIDs))
	for _, id := range docIDs {
		drop[id] = true
	}

	s.mu.Lock()
	var keptVectors [][]float32
	var keptEntries []Entry
	removed := 0
	for i, entry := range s.entries {
		if drop[entry.Metadata.DocID] {
			removed++
			continue
		}
		keptEntries = append(keptEntries, entry)
		keptVectors = append(keptVectors, s.vectors[i])
	}
	if removed == 0 {
		s.mu.Unlock()
		return nil
	}

	oldVectors, oldEntries, oldDim := s.vectors, s.entries, s.dim
	s.vectors = keptVectors
	s.entries = keptEntries
	if len(keptEntries) == 0 {
		s.dim = 0
	}
	if err := s.persistLocked(); err != nil {
		s.vectors, s.entries, s.dim = oldVectors, oldEntries, oldDim
		s.mu.Unlock()
		return fmt.Errorf("persist index: %w", err)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Stats reports index size. IndexSizeMB reflects the on-disk vector blob.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(map[string]bool)
	for _, e := range s.entries {
		docs[e.Metadata.DocID] = true
	}
	st := Stats{TotalChunks: len(s.entries), DocCount: len(docs)}
	if info, err := os.Stat(filepath.Join(s.dir, indexFile)); err == nil {
		st.IndexSizeMB = float64(info.Size()) / (1024 * 1024)
	}
	return st
}

// Entries returns a snapshot of all indexed chunks in id order. The lexical
// index rebuilds its corpus from this.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// LoadStatus reports what happened when the store opened its on-disk state.
func (s *Store) LoadStatus() LoadReport {
	return s.loadReport
}

func (s *Store) notify() {
	s.listenerMu.Lock()
	fns := make([]func(), len(s.listeners))
	copy(fns, s.listeners)
	s.listenerMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Store) load() {
	indexPath := filepath.Join(s.dir, indexFile)
	metaPath := filepath.Join(s.dir, metadataFile)

	_, indexErr := os.Stat(indexPath)
	_, metaErr := os.Stat(metaPath)
	if os.IsNotExist(indexErr) && os.IsNotExist(metaErr) {
		return
	}

	corrupt := func(err error) {
		s.loadReport = LoadReport{Err: fmt.Errorf("%w: %w", ErrIndexCorruption, err)}
		s.vectors, s.entries, s.dim = nil, nil, 0
		s.log.Warn("vector index could not be restored, starting empty",
			"dir", s.dir, "error", err)
	}

	blob, err := os.ReadFile(indexPath)
	if err != nil {
		corrupt(fmt.Errorf("read %s: %w", indexFile, err))
		return
	}
	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		corrupt(fmt.Errorf("read %s: %w", metadataFile, err))
		return
	}

	dim, vectors, err := unmarshalVectors(blob)
	if err != nil {
		corrupt(fmt.Errorf("decode %s: %w", indexFile, err))
		return
	}

	var meta map[string]Entry
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		corrupt(fmt.Errorf("decode %s: %w", metadataFile, err))
		return
	}
	if len(meta) != len(vectors) {
		corrupt(fmt.Errorf("vector count %d does not match metadata count %d", len(vectors), len(meta)))
		return
	}

	entries := make([]Entry, len(meta))
	for key, entry := range meta {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 || id >= len(entries) {
			corrupt(fmt.Errorf("metadata id %q out of range", key))
			return
		}
		entries[id] = entry
	}

	s.vectors = vectors
	s.entries = entries
	s.dim = dim
	s.loadReport = LoadReport{Loaded: len(entries)}
	s.log.Info("vector index restored", "dir", s.dir, "chunks", len(entries), "dimension", dim)
}

func (s *Store) persistLocked() error {
	blob, err := marshalVectors(s.dim, s.vectors)
	if err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	meta := make(map[string]Entry, len(s.entries))
	for i, e := range s.entries {
		meta[strconv.Itoa(i)] = e
	}
	metaRaw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, indexFile), blob); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, metadataFile), metaRaw)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
