package extract

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/omisdami/docrag/internal/document"
)

// CSVExtractor handles CSV files. The whole file becomes one schema table
// with the first row as headers.
type CSVExtractor struct{}

func (e *CSVExtractor) Extract(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ExtractionError{File: filename, Err: fmt.Errorf("parse csv: %w", err)}
	}

	doc := &document.Document{
		Metadata: fileMetadata(filename, "csv", 1),
	}
	if len(records) == 0 {
		return doc, nil
	}

	doc.Tables = []document.Table{{
		TableID: "table_1",
		Title:   doc.Metadata.Title,
		Headers: records[0],
		Rows:    records[1:],
		Page:    1,
	}}
	return doc, nil
}
