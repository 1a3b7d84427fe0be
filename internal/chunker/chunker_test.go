package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/omisdami/docrag/internal/document"
)

// numberedWords builds "w0 w1 ... w{n-1}" so tests can assert exact
// window offsets.
func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func textDoc(sections ...document.Section) *document.Document {
	return &document.Document{
		Metadata: document.Metadata{DocID: "doc-1", Title: "Test"},
		Sections: sections,
	}
}

func TestChunkDocument_SmallSectionFitsOneChunk(t *testing.T) {
	doc := textDoc(document.Section{
		SectionID: "section_1",
		Title:     "Intro",
		Content:   numberedWords(50),
		PageStart: 1,
		PageEnd:   2,
	})

	cfg := Config{MaxTokens: 1000, OverlapTokens: 100, HeadingDepth: 1}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Metadata.ChunkID != "section_1_chunk_1" {
		t.Errorf("expected chunk id section_1_chunk_1, got %q", c.Metadata.ChunkID)
	}
	if c.Content != doc.Sections[0].Content {
		t.Errorf("small section should keep its content verbatim")
	}
	if c.Metadata.TokenCount != 50 {
		t.Errorf("expected token count 50, got %d", c.Metadata.TokenCount)
	}
	if c.Metadata.PageStart != 1 || c.Metadata.PageEnd != 2 {
		t.Errorf("expected pages 1-2, got %d-%d", c.Metadata.PageStart, c.Metadata.PageEnd)
	}
	if c.Metadata.ChunkType != document.ChunkTypeText {
		t.Errorf("expected chunk type text, got %q", c.Metadata.ChunkType)
	}
}

func TestChunkDocument_LargeSectionWindowOffsets(t *testing.T) {
	// 3000 tokens with max 1000 and overlap 100 should yield windows
	// starting at tokens 0, 900, 1800 and 2700, the last one short.
	doc := textDoc(
		document.Section{SectionID: "section_1", Title: "Intro", Content: numberedWords(50), PageStart: 1, PageEnd: 1},
		document.Section{SectionID: "section_2", Title: "Details", Content: numberedWords(3000), PageStart: 2, PageEnd: 9},
	)

	cfg := Config{MaxTokens: 1000, OverlapTokens: 100, HeadingDepth: 1}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks (1 intro + 4 details), got %d", len(chunks))
	}

	details := chunks[1:]
	wantStarts := []int{0, 900, 1800, 2700}
	wantCounts := []int{1000, 1000, 1000, 300}
	for i, c := range details {
		wantID := fmt.Sprintf("section_2_chunk_%d", i+1)
		if c.Metadata.ChunkID != wantID {
			t.Errorf("chunk %d: expected id %q, got %q", i, wantID, c.Metadata.ChunkID)
		}
		tokens := strings.Fields(c.Content)
		if len(tokens) != wantCounts[i] {
			t.Errorf("chunk %d: expected %d tokens, got %d", i, wantCounts[i], len(tokens))
		}
		if c.Metadata.TokenCount != wantCounts[i] {
			t.Errorf("chunk %d: expected token count %d, got %d", i, wantCounts[i], c.Metadata.TokenCount)
		}
		wantFirst := fmt.Sprintf("w%d", wantStarts[i])
		if tokens[0] != wantFirst {
			t.Errorf("chunk %d: expected first token %q, got %q", i, wantFirst, tokens[0])
		}
	}

	last := strings.Fields(details[3].Content)
	if last[len(last)-1] != "w2999" {
		t.Errorf("expected final token w2999, got %q", last[len(last)-1])
	}
}

func TestChunkDocument_OverlapSharedBetweenWindows(t *testing.T) {
	doc := textDoc(document.Section{
		SectionID: "section_1",
		Title:     "Body",
		Content:   numberedWords(2500),
	})

	cfg := Config{MaxTokens: 1000, OverlapTokens: 100, HeadingDepth: 1}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		cur := strings.Fields(chunks[i].Content)
		tail := prev[len(prev)-100:]
		head := cur[:100]
		for j := range tail {
			if tail[j] != head[j] {
				t.Fatalf("chunks %d/%d: overlap token %d differs: %q vs %q", i-1, i, j, tail[j], head[j])
			}
		}
	}
}

func TestChunkDocument_EmptySectionProducesNoChunks(t *testing.T) {
	doc := textDoc(
		document.Section{SectionID: "section_1", Title: "Empty", Content: ""},
		document.Section{SectionID: "section_2", Title: "Blank", Content: "   \n\t  "},
	)
	chunks := ChunkDocument(doc, DefaultConfig())
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty sections, got %d", len(chunks))
	}
}

func TestChunkDocument_StableIDs(t *testing.T) {
	doc := textDoc(document.Section{
		SectionID: "section_1",
		Title:     "Body",
		Content:   numberedWords(2500),
	})
	cfg := Config{MaxTokens: 1000, OverlapTokens: 100, HeadingDepth: 1}

	first := ChunkDocument(doc, cfg)
	second := ChunkDocument(doc, cfg)

	if len(first) != len(second) {
		t.Fatalf("chunk count changed between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Metadata.ChunkID != second[i].Metadata.ChunkID {
			t.Errorf("chunk %d: id changed between runs: %q vs %q", i, first[i].Metadata.ChunkID, second[i].Metadata.ChunkID)
		}
		if first[i].Content != second[i].Content {
			t.Errorf("chunk %d: content changed between runs", i)
		}
	}
}

func TestChunkDocument_NoChunkExceedsMaxTokens(t *testing.T) {
	doc := textDoc(
		document.Section{SectionID: "section_1", Title: "A", Content: numberedWords(777)},
		document.Section{SectionID: "section_2", Title: "B", Content: numberedWords(4321)},
	)
	cfg := Config{MaxTokens: 600, OverlapTokens: 60, HeadingDepth: 1}
	for i, c := range ChunkDocument(doc, cfg) {
		if n := len(strings.Fields(c.Content)); n > cfg.MaxTokens {
			t.Errorf("chunk %d: %d tokens exceeds max %d", i, n, cfg.MaxTokens)
		}
	}
}

func TestChunkDocument_ZeroConfigUsesDefaults(t *testing.T) {
	doc := textDoc(document.Section{
		SectionID: "section_1",
		Title:     "Body",
		Content:   numberedWords(200),
	})
	chunks := ChunkDocument(doc, Config{})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk with default config, got %d", len(chunks))
	}
}

func TestChunkDocument_TableMarkdown(t *testing.T) {
	doc := &document.Document{
		Metadata: document.Metadata{DocID: "doc-1"},
		Tables: []document.Table{
			{
				TableID:       "table_1",
				Title:         "Revenue",
				Headers:       []string{"Year", "Amount"},
				Rows:          [][]string{{"2023", "100"}, {"2024", "150"}},
				SourceSection: "section_3",
				Page:          4,
			},
		},
	}

	chunks := ChunkDocument(doc, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 table chunk, got %d", len(chunks))
	}
	c := chunks[0]

	want := "Table: Revenue\n\n" +
		"| Year | Amount |\n" +
		"| --- | --- |\n" +
		"| 2023 | 100 |\n" +
		"| 2024 | 150 |\n"
	if c.Content != want {
		t.Errorf("table markdown mismatch:\nwant %q\ngot  %q", want, c.Content)
	}
	if c.Metadata.ChunkID != "table_1_chunk" {
		t.Errorf("expected chunk id table_1_chunk, got %q", c.Metadata.ChunkID)
	}
	if c.Metadata.SectionID != "section_3" {
		t.Errorf("expected section_3, got %q", c.Metadata.SectionID)
	}
	if c.Metadata.ChunkType != document.ChunkTypeTable {
		t.Errorf("expected table chunk type, got %q", c.Metadata.ChunkType)
	}
	if len(c.Metadata.HeadingChain) != 1 || c.Metadata.HeadingChain[0] != "Revenue" {
		t.Errorf("expected heading chain [Revenue], got %v", c.Metadata.HeadingChain)
	}
	if c.Metadata.PageStart != 4 || c.Metadata.PageEnd != 4 {
		t.Errorf("expected pages 4-4, got %d-%d", c.Metadata.PageStart, c.Metadata.PageEnd)
	}
}

func TestChunkDocument_EmptyTableNoData(t *testing.T) {
	doc := &document.Document{
		Metadata: document.Metadata{DocID: "doc-1"},
		Tables:   []document.Table{{TableID: "table_7"}},
	}

	chunks := ChunkDocument(doc, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "Table table_7: No data" {
		t.Errorf("expected no-data placeholder, got %q", chunks[0].Content)
	}
	if chunks[0].Metadata.SectionID != "tables" {
		t.Errorf("expected fallback section id tables, got %q", chunks[0].Metadata.SectionID)
	}
	if got := chunks[0].Metadata.HeadingChain; len(got) != 1 || got[0] != "Table table_7" {
		t.Errorf("expected heading chain [Table table_7], got %v", got)
	}
}

func TestChunkDocument_OversizedTableStaysWhole(t *testing.T) {
	// Tables are never split even when they exceed the token window.
	rows := make([][]string, 500)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row%d", i), fmt.Sprintf("value number %d here", i)}
	}
	doc := &document.Document{
		Metadata: document.Metadata{DocID: "doc-1"},
		Tables: []document.Table{{
			TableID: "table_1",
			Title:   "Big",
			Headers: []string{"Key", "Value"},
			Rows:    rows,
		}},
	}

	chunks := ChunkDocument(doc, Config{MaxTokens: 100, OverlapTokens: 10, HeadingDepth: 1})
	if len(chunks) != 1 {
		t.Fatalf("expected oversized table to stay one chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata.TokenCount <= 100 {
		t.Errorf("expected token count above window size, got %d", chunks[0].Metadata.TokenCount)
	}
}

func TestChunkDocument_FigureContent(t *testing.T) {
	doc := &document.Document{
		Metadata: document.Metadata{DocID: "doc-1"},
		Figures: []document.Figure{
			{
				FigureID:   "figure_1",
				Title:      "Architecture",
				Caption:    "System overview",
				FigureType: "diagram",
				Page:       3,
			},
			{
				FigureID:   "figure_2",
				FigureType: "chart",
			},
		},
	}

	chunks := ChunkDocument(doc, DefaultConfig())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 figure chunks, got %d", len(chunks))
	}

	want := "Figure: Architecture\nCaption: System overview\nType: diagram"
	if chunks[0].Content != want {
		t.Errorf("figure content mismatch:\nwant %q\ngot  %q", want, chunks[0].Content)
	}
	if chunks[0].Metadata.ChunkID != "figure_1_chunk" {
		t.Errorf("expected figure_1_chunk, got %q", chunks[0].Metadata.ChunkID)
	}
	if chunks[0].Metadata.ChunkType != document.ChunkTypeFigure {
		t.Errorf("expected figure chunk type, got %q", chunks[0].Metadata.ChunkType)
	}

	// Untitled figure falls back to its id and omits the caption line.
	want2 := "Figure: figure_2\nType: chart"
	if chunks[1].Content != want2 {
		t.Errorf("figure content mismatch:\nwant %q\ngot  %q", want2, chunks[1].Content)
	}
	if got := chunks[1].Metadata.HeadingChain; len(got) != 1 || got[0] != "Figure figure_2" {
		t.Errorf("expected heading chain [Figure figure_2], got %v", got)
	}
	if chunks[1].Metadata.SectionID != "figures" {
		t.Errorf("expected fallback section id figures, got %q", chunks[1].Metadata.SectionID)
	}
}

func TestChunkDocument_ImageContent(t *testing.T) {
	doc := &document.Document{
		Metadata: document.Metadata{DocID: "doc-1"},
		Images: []document.Image{
			{
				ImageID:       "image_1",
				Filename:      "diagram.png",
				AltText:       "flow diagram",
				ExtractedText: "step one",
				Page:          2,
			},
			{
				ImageID:  "image_2",
				Filename: "photo.jpg",
			},
		},
	}

	chunks := ChunkDocument(doc, DefaultConfig())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 image chunks, got %d", len(chunks))
	}

	want := "Image: diagram.png\nAlt text: flow diagram\nExtracted text: step one"
	if chunks[0].Content != want {
		t.Errorf("image content mismatch:\nwant %q\ngot  %q", want, chunks[0].Content)
	}
	if chunks[0].Metadata.ChunkID != "image_1_chunk" {
		t.Errorf("expected image_1_chunk, got %q", chunks[0].Metadata.ChunkID)
	}
	if got := chunks[0].Metadata.HeadingChain; len(got) != 1 || got[0] != "Image image_1" {
		t.Errorf("expected heading chain [Image image_1], got %v", got)
	}

	want2 := "Image: photo.jpg\n"
	if chunks[1].Content != want2 {
		t.Errorf("image content mismatch:\nwant %q\ngot  %q", want2, chunks[1].Content)
	}
	if chunks[1].Metadata.SectionID != "images" {
		t.Errorf("expected fallback section id images, got %q", chunks[1].Metadata.SectionID)
	}
}

func TestChunkDocument_HeadingChainDepth(t *testing.T) {
	sections := []document.Section{
		{SectionID: "section_1", Title: "Chapter", Level: 1, Content: ""},
		{SectionID: "section_2", Title: "Topic", Level: 2, ParentSectionID: "section_1", Content: ""},
		{SectionID: "section_3", Title: "Detail", Level: 3, ParentSectionID: "section_2", Content: numberedWords(10)},
	}

	// Depth 1 keeps only the owning section's title.
	doc := textDoc(sections...)
	chunks := ChunkDocument(doc, Config{MaxTokens: 1000, OverlapTokens: 100, HeadingDepth: 1})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := chunks[0].Metadata.HeadingChain; len(got) != 1 || got[0] != "Detail" {
		t.Errorf("depth 1: expected [Detail], got %v", got)
	}

	// Depth 0 walks the full ancestor path.
	chunks = ChunkDocument(doc, Config{MaxTokens: 1000, OverlapTokens: 100, HeadingDepth: 0})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := []string{"Chapter", "Topic", "Detail"}
	got := chunks[0].Metadata.HeadingChain
	if len(got) != len(want) {
		t.Fatalf("depth 0: expected chain %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("depth 0: chain[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}

	// Depth 2 caps the walk at the nearest ancestor.
	chunks = ChunkDocument(doc, Config{MaxTokens: 1000, OverlapTokens: 100, HeadingDepth: 2})
	got = chunks[0].Metadata.HeadingChain
	want = []string{"Topic", "Detail"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("depth 2: expected chain %v, got %v", want, got)
	}
}

func TestTokenize_RoundTrip(t *testing.T) {
	text := "  The quick\nbrown   fox\t jumps "
	tokens := Tokenize(text)
	if len(tokens) != 5 {
		t.Fatalf("expected 5 tokens, got %d", len(tokens))
	}
	if Detokenize(tokens) != "The quick brown fox jumps" {
		t.Errorf("unexpected detokenized text: %q", Detokenize(tokens))
	}
	if CountTokens(text) != 5 {
		t.Errorf("expected count 5, got %d", CountTokens(text))
	}
}
