package extract

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/omisdami/docrag/internal/document"
)

// Headings in PDFs are recognized by font size: a short text row set larger
// than body text starts a new section.
const (
	pdfHeadingFontSize = 14
	pdfHeadingMaxLen   = 100
)

// PDFExtractor handles PDF files. It reads styled text rows so headings can
// be detected by font size, and falls back to pdftotext if available.
type PDFExtractor struct {
	FallbackPdftotext bool
}

func (e *PDFExtractor) Extract(r io.Reader, filename string) (*document.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docrag-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc, err := extractPDFStyled(tmpPath, filename)
	if err != nil && e.FallbackPdftotext {
		doc, err = extractPDFPlain(tmpPath, filename)
	}
	if err != nil {
		return nil, &ExtractionError{File: filename, Err: err}
	}
	return doc, nil
}

func extractPDFStyled(path, filename string) (*document.Document, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var b sectionBuilder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			text, size := rowText(row)
			if text == "" {
				continue
			}
			if size > pdfHeadingFontSize && len(text) < pdfHeadingMaxLen {
				b.StartSection(text, 1, i)
			} else {
				b.AddText(text, i)
			}
		}
	}

	return &document.Document{
		Metadata: fileMetadata(filename, "pdf", numPages),
		Sections: b.Sections(),
	}, nil
}

// rowText joins a row's text runs and reports the largest font size seen.
func rowText(row *pdflib.Row) (string, float64) {
	var buf strings.Builder
	var size float64
	for _, t := range row.Content {
		buf.WriteString(t.S)
		if t.FontSize > size {
			size = t.FontSize
		}
	}
	return strings.TrimSpace(buf.String()), size
}

// extractPDFPlain shells out to pdftotext. Without font information every
// page's text lands in the default section.
func extractPDFPlain(path, filename string) (*document.Document, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	pages := strings.Split(string(out), "\f")
	for len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}

	var b sectionBuilder
	for i, pageText := range pages {
		b.AddText(pageText, i+1)
	}

	return &document.Document{
		Metadata: fileMetadata(filename, "pdf", len(pages)),
		Sections: b.Sections(),
	}, nil
}
