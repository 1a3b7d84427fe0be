// Package document defines the structured document schema produced by
// extraction and the chunk/retrieval types derived from it. These types are
// serialized as-is: the structured JSON files on disk, the vector store
// sidecar, and the API responses all share them.
package document

// Metadata identifies an ingested document.
type Metadata struct {
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	Date       string `json:"date,omitempty"`
	SourcePath string `json:"source_path,omitempty"`
	DocID      string `json:"doc_id"`
	Filetype   string `json:"filetype"`
	Pages      int    `json:"pages"`
}

// Section is a heading-delimited span of body text.
type Section struct {
	SectionID       string `json:"section_id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	PageStart       int    `json:"page_start"`
	PageEnd         int    `json:"page_end"`
	Level           int    `json:"level"`
	ParentSectionID string `json:"parent_section_id,omitempty"`
}

// Table is a row/column grid with optional title and caption.
type Table struct {
	TableID       string     `json:"table_id"`
	Title         string     `json:"title,omitempty"`
	Headers       []string   `json:"headers"`
	Rows          [][]string `json:"rows"`
	Caption       string     `json:"caption,omitempty"`
	SourceSection string     `json:"source_section,omitempty"`
	Page          int        `json:"page"`
}

// Figure is a chart/diagram reference; the figure itself is not stored.
type Figure struct {
	FigureID      string `json:"figure_id"`
	Title         string `json:"title,omitempty"`
	Caption       string `json:"caption,omitempty"`
	FigureType    string `json:"figure_type"`
	SourceSection string `json:"source_section,omitempty"`
	Page          int    `json:"page"`
}

// Image is an embedded image reference with any text recovered from it.
type Image struct {
	ImageID       string `json:"image_id"`
	Filename      string `json:"filename"`
	AltText       string `json:"alt_text,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
	SourceSection string `json:"source_section,omitempty"`
	Page          int    `json:"page"`
}

// Document is the structured form of one ingested file: metadata plus an
// ordered sequence of sections and any tables/figures/images found.
type Document struct {
	Metadata Metadata  `json:"metadata"`
	Sections []Section `json:"sections"`
	Tables   []Table   `json:"tables,omitempty"`
	Figures  []Figure  `json:"figures,omitempty"`
	Images   []Image   `json:"images,omitempty"`
}

// ChunkMetadata is the provenance carried by every indexed chunk.
type ChunkMetadata struct {
	DocID        string   `json:"doc_id"`
	ChunkID      string   `json:"chunk_id"`
	PageStart    int      `json:"page_start"`
	PageEnd      int      `json:"page_end"`
	SectionID    string   `json:"section_id"`
	HeadingChain []string `json:"heading_chain"`
	ChunkType    string   `json:"chunk_type"`
	TokenCount   int      `json:"token_count"`
}

// Chunk types.
const (
	ChunkTypeText   = "text"
	ChunkTypeTable  = "table"
	ChunkTypeFigure = "figure"
	ChunkTypeImage  = "image"
)

// Chunk is the retrieval atom: bounded content plus provenance. Chunks are
// immutable once created and live until their owning document is deleted.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// RetrievalResult is one ranked hit from an index or the hybrid retriever.
// Produced fresh per query, never persisted.
type RetrievalResult struct {
	Content  string        `json:"content"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Citation points generated text back at a source chunk.
type Citation struct {
	DocID          string `json:"doc_id"`
	Page           int    `json:"page"`
	Section        string `json:"section"`
	ChunkID        string `json:"chunk_id"`
	ContentPreview string `json:"content_preview"`
}
