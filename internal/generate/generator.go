package generate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/omisdami/docrag/internal/document"
)

const (
	answerTemperature  = 0.1
	sectionTemperature = 0.2

	// maxContextSources caps how many results feed a prompt context.
	// Citations still cover every retrieved result.
	maxContextSources = 10

	previewRunes = 200

	noEvidenceAnswer = "Not enough evidence found to answer the query."
)

// Confidence levels attached to generated answers.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Report defaults.
const (
	DefaultReportStyle  = "professional"
	DefaultReportLength = "medium"
)

// DefaultReportSections is used when a report request names no sections.
var DefaultReportSections = []string{
	"Executive Summary",
	"Key Findings",
	"Risks & Mitigations",
	"Recommendations",
}

// Completer is the LLM surface the generator needs.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Generator turns retrieved chunks into grounded answers and reports.
type Generator struct {
	client Completer
}

func NewGenerator(client Completer) *Generator {
	return &Generator{client: client}
}

// AnswerResult is a direct answer with its supporting citations.
type AnswerResult struct {
	Answer     string              `json:"answer"`
	Confidence string              `json:"confidence"`
	Citations  []document.Citation `json:"citations"`
}

// Answer generates a direct answer to the query from the retrieved results.
// With no results it returns the fixed no-evidence answer instead of calling
// the model.
func (g *Generator) Answer(ctx context.Context, query string, results []document.RetrievalResult) (*AnswerResult, error) {
	if len(results) == 0 {
		return &AnswerResult{
			Answer:     noEvidenceAnswer,
			Confidence: ConfidenceLow,
			Citations:  []document.Citation{},
		}, nil
	}

	answer, err := g.client.Complete(ctx, answerPrompt(query, buildContext(results)), answerTemperature)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &AnswerResult{
		Answer:     answer,
		Confidence: assessConfidence(results),
		Citations:  extractCitations(results),
	}, nil
}

// ReportSection is one named section of a generated report.
type ReportSection struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ReportMetadata describes how a report was generated.
type ReportMetadata struct {
	Style        string `json:"style"`
	Length       string `json:"length"`
	TotalSources int    `json:"total_sources"`
}

// ReportResult is a structured multi-section report.
type ReportResult struct {
	Query     string              `json:"query"`
	Sections  []ReportSection     `json:"sections"`
	Citations []document.Citation `json:"citations"`
	Metadata  ReportMetadata      `json:"metadata"`
}

// Report generates one completion per section, concurrently, and returns the
// sections in the order requested. Each section cites the full result set, so
// the report citation list repeats per section.
func (g *Generator) Report(ctx context.Context, query string, results []document.RetrievalResult, style, length string, sections []string) (*ReportResult, error) {
	if style == "" {
		style = DefaultReportStyle
	}
	if length == "" {
		length = DefaultReportLength
	}
	if len(sections) == 0 {
		sections = DefaultReportSections
	}

	contextText := buildContext(results)

	contents := make([]string, len(sections))
	grp, gctx := errgroup.WithContext(ctx)
	for i, name := range sections {
		i, name := i, name
		grp.Go(func() error {
			text, err := g.client.Complete(gctx, sectionPrompt(name, query, contextText, style, length), sectionTemperature)
			if err != nil {
				return fmt.Errorf("generate section %q: %w", name, err)
			}
			contents[i] = text
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	perSection := extractCitations(results)
	out := make([]ReportSection, len(sections))
	citations := make([]document.Citation, 0, len(sections)*len(perSection))
	for i, name := range sections {
		out[i] = ReportSection{Name: name, Content: contents[i]}
		citations = append(citations, perSection...)
	}

	return &ReportResult{
		Query:     query,
		Sections:  out,
		Citations: citations,
		Metadata: ReportMetadata{
			Style:        style,
			Length:       length,
			TotalSources: distinctDocs(citations),
		},
	}, nil
}

// buildContext renders the top results as numbered source blocks.
func buildContext(results []document.RetrievalResult) string {
	n := min(len(results), maxContextSources)
	parts := make([]string, 0, n)
	for i, res := range results[:n] {
		parts = append(parts, fmt.Sprintf("[Source %d]\nDocument: %s\nPage: %d\nSection: %s\nContent: %s\n---",
			i+1, res.Metadata.DocID, res.Metadata.PageStart,
			strings.Join(res.Metadata.HeadingChain, ", "), res.Content))
	}
	return strings.Join(parts, "\n\n")
}

// extractCitations builds one citation per retrieved result.
func extractCitations(results []document.RetrievalResult) []document.Citation {
	citations := make([]document.Citation, 0, len(results))
	for _, res := range results {
		citations = append(citations, document.Citation{
			DocID:          res.Metadata.DocID,
			Page:           res.Metadata.PageStart,
			Section:        strings.Join(res.Metadata.HeadingChain, ", "),
			ChunkID:        res.Metadata.ChunkID,
			ContentPreview: contentPreview(res.Content),
		})
	}
	return citations
}

func contentPreview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewRunes {
		return s
	}
	return string(runes[:previewRunes]) + "..."
}

// assessConfidence grades an answer by retrieval score and support count.
func assessConfidence(results []document.RetrievalResult) string {
	if len(results) == 0 {
		return ConfidenceLow
	}
	var sum float64
	for _, res := range results {
		sum += res.Score
	}
	avg := sum / float64(len(results))

	switch {
	case avg > 0.8 && len(results) >= 3:
		return ConfidenceHigh
	case avg > 0.6 && len(results) >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func distinctDocs(citations []document.Citation) int {
	seen := make(map[string]struct{})
	for _, c := range citations {
		seen[c.DocID] = struct{}{}
	}
	return len(seen)
}
