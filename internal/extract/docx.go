package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/omisdami/docrag/internal/document"
)

// DOCXExtractor handles .docx files. Paragraphs with Heading styles open
// sections at the style's level; body tables become schema tables.
type DOCXExtractor struct{}

func (e *DOCXExtractor) Extract(r io.Reader, filename string) (*document.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docrag-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	parsed, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, &ExtractionError{File: filename, Err: fmt.Errorf("parse docx: %w", err)}
	}

	var b sectionBuilder
	var tables []document.Table

	for _, item := range parsed.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			level := docxHeadingLevel(it)
			text := docxParagraphText(it)
			if level > 0 && text != "" {
				b.StartSection(text, level, 1)
			} else if text != "" {
				b.AddText(text, 1)
			}
		case *docx.Table:
			tbl := docxTable(it, len(tables)+1)
			tbl.SourceSection = b.CurrentSectionID()
			tables = append(tables, tbl)
		}
	}

	return &document.Document{
		Metadata: fileMetadata(filename, "docx", 1),
		Sections: b.Sections(),
		Tables:   tables,
	}, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := para.Properties.Style.Val
	switch {
	case strings.EqualFold(style, "Heading1") || strings.EqualFold(style, "heading 1"):
		return 1
	case strings.EqualFold(style, "Heading2") || strings.EqualFold(style, "heading 2"):
		return 2
	case strings.EqualFold(style, "Heading3") || strings.EqualFold(style, "heading 3"):
		return 3
	case strings.EqualFold(style, "Heading4") || strings.EqualFold(style, "heading 4"):
		return 4
	case strings.EqualFold(style, "Heading5") || strings.EqualFold(style, "heading 5"):
		return 5
	case strings.EqualFold(style, "Heading6") || strings.EqualFold(style, "heading 6"):
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// docxTable flattens a body table into the schema grid; the first row is
// treated as the header row.
func docxTable(t *docx.Table, n int) document.Table {
	var grid [][]string
	for _, tr := range t.TableRows {
		var cells []string
		for _, tc := range tr.TableCells {
			var parts []string
			for _, p := range tc.Paragraphs {
				if txt := docxParagraphText(p); txt != "" {
					parts = append(parts, txt)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		grid = append(grid, cells)
	}

	tbl := document.Table{
		TableID: fmt.Sprintf("table_%d", n),
		Page:    1,
	}
	if len(grid) > 0 {
		tbl.Headers = grid[0]
		tbl.Rows = grid[1:]
	}
	return tbl
}
