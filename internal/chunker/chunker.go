// Package chunker splits structured documents into retrieval-sized chunks.
// Section bodies are split by a sliding token window with overlap; tables,
// figures and images each become one synthetic, unsplit chunk.
package chunker

import (
	"fmt"
	"strings"

	"github.com/omisdami/docrag/internal/document"
)

// Config controls chunking behavior.
type Config struct {
	MaxTokens     int // Maximum chunk size in tokens.
	OverlapTokens int // Overlap between consecutive chunks in tokens.
	HeadingDepth  int // Heading-chain depth: 1 = section title only, 0 = full ancestor path.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     1600,
		OverlapTokens: 160,
		HeadingDepth:  1,
	}
}

// ChunkDocument produces the document's chunks: token-bounded pieces of
// every section's body text, then one chunk per table, figure and image.
// Chunk ids are stable across runs for an unchanged document.
func ChunkDocument(doc *document.Document, cfg Config) []document.Chunk {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1600
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = cfg.MaxTokens / 10
	}

	byID := make(map[string]document.Section, len(doc.Sections))
	for _, sec := range doc.Sections {
		byID[sec.SectionID] = sec
	}

	var chunks []document.Chunk
	for _, sec := range doc.Sections {
		chunks = append(chunks, chunkSection(doc.Metadata.DocID, sec, byID, cfg)...)
	}
	chunks = append(chunks, tableChunks(doc)...)
	chunks = append(chunks, figureChunks(doc)...)
	chunks = append(chunks, imageChunks(doc)...)
	return chunks
}

func chunkSection(docID string, sec document.Section, byID map[string]document.Section, cfg Config) []document.Chunk {
	if strings.TrimSpace(sec.Content) == "" {
		return nil
	}

	tokens := Tokenize(sec.Content)
	chain := headingChain(sec, byID, cfg.HeadingDepth)

	meta := func(num, count int) document.ChunkMetadata {
		return document.ChunkMetadata{
			DocID:        docID,
			ChunkID:      fmt.Sprintf("%s_chunk_%d", sec.SectionID, num),
			PageStart:    sec.PageStart,
			PageEnd:      sec.PageEnd,
			SectionID:    sec.SectionID,
			HeadingChain: chain,
			ChunkType:    document.ChunkTypeText,
			TokenCount:   count,
		}
	}

	if len(tokens) <= cfg.MaxTokens {
		return []document.Chunk{{Content: sec.Content, Metadata: meta(1, len(tokens))}}
	}

	// Slide a window of MaxTokens, advancing by MaxTokens-OverlapTokens.
	// The final window may be shorter; it is not padded.
	var chunks []document.Chunk
	step := cfg.MaxTokens - cfg.OverlapTokens
	num := 1
	for start := 0; start < len(tokens); start += step {
		end := start + cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		chunks = append(chunks, document.Chunk{
			Content:  Detokenize(window),
			Metadata: meta(num, len(window)),
		})
		if end == len(tokens) {
			break
		}
		num++
	}
	return chunks
}

// headingChain builds the citation heading path for a section. Depth 1 is
// the section's own title; depth 0 walks parent links all the way up;
// larger depths cap the walk.
func headingChain(sec document.Section, byID map[string]document.Section, depth int) []string {
	chain := []string{sec.Title}
	if depth == 1 {
		return chain
	}
	seen := map[string]bool{sec.SectionID: true}
	cur := sec.ParentSectionID
	for cur != "" && !seen[cur] && (depth <= 0 || len(chain) < depth) {
		parent, ok := byID[cur]
		if !ok {
			break
		}
		chain = append([]string{parent.Title}, chain...)
		seen[cur] = true
		cur = parent.ParentSectionID
	}
	return chain
}

func tableChunks(doc *document.Document) []document.Chunk {
	var chunks []document.Chunk
	for _, tbl := range doc.Tables {
		content := tableMarkdown(tbl)
		heading := tbl.Title
		if heading == "" {
			heading = "Table " + tbl.TableID
		}
		sectionID := tbl.SourceSection
		if sectionID == "" {
			sectionID = "tables"
		}
		chunks = append(chunks, document.Chunk{
			Content: content,
			Metadata: document.ChunkMetadata{
				DocID:        doc.Metadata.DocID,
				ChunkID:      tbl.TableID + "_chunk",
				PageStart:    tbl.Page,
				PageEnd:      tbl.Page,
				SectionID:    sectionID,
				HeadingChain: []string{heading},
				ChunkType:    document.ChunkTypeTable,
				TokenCount:   CountTokens(content),
			},
		})
	}
	return chunks
}

func figureChunks(doc *document.Document) []document.Chunk {
	var chunks []document.Chunk
	for _, fig := range doc.Figures {
		title := fig.Title
		if title == "" {
			title = fig.FigureID
		}
		var buf strings.Builder
		fmt.Fprintf(&buf, "Figure: %s\n", title)
		if fig.Caption != "" {
			fmt.Fprintf(&buf, "Caption: %s\n", fig.Caption)
		}
		fmt.Fprintf(&buf, "Type: %s", fig.FigureType)
		content := buf.String()

		heading := fig.Title
		if heading == "" {
			heading = "Figure " + fig.FigureID
		}
		sectionID := fig.SourceSection
		if sectionID == "" {
			sectionID = "figures"
		}
		chunks = append(chunks, document.Chunk{
			Content: content,
			Metadata: document.ChunkMetadata{
				DocID:        doc.Metadata.DocID,
				ChunkID:      fig.FigureID + "_chunk",
				PageStart:    fig.Page,
				PageEnd:      fig.Page,
				SectionID:    sectionID,
				HeadingChain: []string{heading},
				ChunkType:    document.ChunkTypeFigure,
				TokenCount:   CountTokens(content),
			},
		})
	}
	return chunks
}

func imageChunks(doc *document.Document) []document.Chunk {
	var chunks []document.Chunk
	for _, img := range doc.Images {
		var buf strings.Builder
		fmt.Fprintf(&buf, "Image: %s\n", img.Filename)
		if img.AltText != "" {
			fmt.Fprintf(&buf, "Alt text: %s\n", img.AltText)
		}
		if img.ExtractedText != "" {
			fmt.Fprintf(&buf, "Extracted text: %s", img.ExtractedText)
		}
		content := buf.String()

		sectionID := img.SourceSection
		if sectionID == "" {
			sectionID = "images"
		}
		chunks = append(chunks, document.Chunk{
			Content: content,
			Metadata: document.ChunkMetadata{
				DocID:        doc.Metadata.DocID,
				ChunkID:      img.ImageID + "_chunk",
				PageStart:    img.Page,
				PageEnd:      img.Page,
				SectionID:    sectionID,
				HeadingChain: []string{"Image " + img.ImageID},
				ChunkType:    document.ChunkTypeImage,
				TokenCount:   CountTokens(content),
			},
		})
	}
	return chunks
}

// tableMarkdown renders a table as a markdown-style grid.
func tableMarkdown(tbl document.Table) string {
	if len(tbl.Headers) == 0 && len(tbl.Rows) == 0 {
		return fmt.Sprintf("Table %s: No data", tbl.TableID)
	}

	title := tbl.Title
	if title == "" {
		title = tbl.TableID
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Table: %s\n\n", title)
	if len(tbl.Headers) > 0 {
		buf.WriteString("| " + strings.Join(tbl.Headers, " | ") + " |\n")
		sep := make([]string, len(tbl.Headers))
		for i := range sep {
			sep[i] = "---"
		}
		buf.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	}
	for _, row := range tbl.Rows {
		buf.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return buf.String()
}
