// Package extract turns raw document files into the structured document
// schema. Each supported format has its own extractor; all of them emit flat
// sections with section_N ids, heading levels, and parent links.
package extract

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/omisdami/docrag/internal/document"
)

// Extractor converts raw document bytes into a structured Document.
type Extractor interface {
	Extract(r io.Reader, filename string) (*document.Document, error)
}

// ErrUnsupportedType is returned when no extractor exists for a file.
var ErrUnsupportedType = errors.New("unsupported file type")

// ExtractionError wraps a failure to extract a specific file.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".csv":      true,
	".txt":      true,
}

// ForFile returns the appropriate extractor for a filename.
func ForFile(filename string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFExtractor{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXExtractor{}, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, nil
	case ".csv":
		return &CSVExtractor{}, nil
	case ".txt":
		return &TextExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// defaultSectionTitle names the section that collects body text appearing
// before any detected heading.
const defaultSectionTitle = "Document Content"

// fileMetadata builds document metadata with a fresh doc id.
func fileMetadata(filename, filetype string, pages int) document.Metadata {
	return document.Metadata{
		Title:      titleFromFilename(filename),
		SourcePath: filename,
		DocID:      uuid.NewString(),
		Filetype:   filetype,
		Pages:      pages,
	}
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sectionBuilder accumulates flat sections from a stream of headings and
// body text. Section ids are assigned sequentially across the document;
// parent links follow heading nesting.
type sectionBuilder struct {
	sections []document.Section
	open     []int // indices into sections, outermost first
	levels   []int // heading level per open entry
}

// StartSection opens a new section at the given heading level. Open
// sections at the same or deeper level are closed first.
func (b *sectionBuilder) StartSection(title string, level, page int) {
	if level < 1 {
		level = 1
	}
	for len(b.open) > 0 && b.levels[len(b.levels)-1] >= level {
		b.open = b.open[:len(b.open)-1]
		b.levels = b.levels[:len(b.levels)-1]
	}
	parent := ""
	if len(b.open) > 0 {
		parent = b.sections[b.open[len(b.open)-1]].SectionID
	}
	b.sections = append(b.sections, document.Section{
		SectionID:       fmt.Sprintf("section_%d", len(b.sections)+1),
		Title:           title,
		PageStart:       page,
		PageEnd:         page,
		Level:           level,
		ParentSectionID: parent,
	})
	b.open = append(b.open, len(b.sections)-1)
	b.levels = append(b.levels, level)
}

// AddText appends body text to the innermost open section, opening the
// default section when no heading has been seen yet.
func (b *sectionBuilder) AddText(text string, page int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len(b.open) == 0 {
		b.StartSection(defaultSectionTitle, 1, page)
	}
	cur := &b.sections[b.open[len(b.open)-1]]
	if cur.Content != "" {
		cur.Content += "\n\n" + text
	} else {
		cur.Content = text
	}
	if page > cur.PageEnd {
		cur.PageEnd = page
	}
}

// CurrentSectionID returns the id of the innermost open section, or "".
func (b *sectionBuilder) CurrentSectionID() string {
	if len(b.open) == 0 {
		return ""
	}
	return b.sections[b.open[len(b.open)-1]].SectionID
}

// Sections returns the accumulated sections in document order.
func (b *sectionBuilder) Sections() []document.Section {
	return b.sections
}
