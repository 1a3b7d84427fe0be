package extract

import (
	"bufio"
	"io"
	"strings"

	"github.com/omisdami/docrag/internal/document"
)

// TextExtractor handles plain text files. Blank-line-separated paragraphs
// form a single default section.
type TextExtractor struct{}

func (e *TextExtractor) Extract(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b sectionBuilder
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			b.AddText(current.String(), 1)
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, &ExtractionError{File: filename, Err: err}
	}

	return &document.Document{
		Metadata: fileMetadata(filename, "text", 1),
		Sections: b.Sections(),
	}, nil
}
