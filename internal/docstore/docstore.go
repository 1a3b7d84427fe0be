// Package docstore persists extracted structured documents as one JSON file
// per document under a flat directory.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omisdami/docrag/internal/document"
)

// Store reads and writes structured documents as {doc_id}.json files.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create structured dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the document and returns the file path.
func (s *Store) Save(doc *document.Document) (string, error) {
	id := doc.Metadata.DocID
	if !validDocID(id) {
		return "", fmt.Errorf("invalid doc id %q", id)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document %s: %w", id, err)
	}
	path := filepath.Join(s.dir, id+".json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("save document %s: %w", id, err)
	}
	return path, nil
}

// Load reads one document back by id.
func (s *Store) Load(docID string) (*document.Document, error) {
	if !validDocID(docID) {
		return nil, fmt.Errorf("invalid doc id %q", docID)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, docID+".json"))
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", docID, err)
	}
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document %s: %w", docID, err)
	}
	return &doc, nil
}

// List returns the stored document ids in filename order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list structured dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	ids, err := s.List()
	if err != nil {
		return 0
	}
	return len(ids)
}

// Delete removes the files for the given doc ids and returns the paths it
// actually removed. Ids without a stored file are skipped.
func (s *Store) Delete(docIDs []string) []string {
	deleted := make([]string, 0, len(docIDs))
	for _, id := range docIDs {
		if !validDocID(id) {
			continue
		}
		path := filepath.Join(s.dir, id+".json")
		if err := os.Remove(path); err == nil {
			deleted = append(deleted, path)
		}
	}
	return deleted
}

// validDocID rejects ids that could escape the store directory.
func validDocID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
