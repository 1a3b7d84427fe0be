package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/omisdami/docrag/internal/config"
	"github.com/omisdami/docrag/internal/docstore"
	"github.com/omisdami/docrag/internal/generate"
	"github.com/omisdami/docrag/internal/lexical"
	"github.com/omisdami/docrag/internal/retrieval"
	"github.com/omisdami/docrag/internal/vectorstore"
)

// hashEmbedder derives a deterministic vector from the text itself, so
// ingestion and search work without a live embedding service.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 8)
	for i := range vec {
		vec[i] = float32(sum[i]) + 1
	}
	return vec, nil
}

func (hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := hashEmbedder{}.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// scriptedCompleter returns a fixed reply and records every prompt. Report
// generation calls Complete concurrently, hence the mutex.
type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.reply, nil
}

func (c *scriptedCompleter) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, completer generate.Completer) *Orchestrator {
	t.Helper()
	return newTestOrchestratorQueue(t, completer, 4)
}

func newTestOrchestratorQueue(t *testing.T, completer generate.Completer, queueSize int) *Orchestrator {
	t.Helper()
	dir := t.TempDir()

	store, err := vectorstore.New(filepath.Join(dir, "index"), hashEmbedder{}, testLogger())
	if err != nil {
		t.Fatalf("vectorstore.New: %v", err)
	}
	docs, err := docstore.New(filepath.Join(dir, "structured"))
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	idx := lexical.New(store)
	store.OnChange(idx.Rebuild)
	retriever := retrieval.New(store, idx, retrieval.Config{Alpha: 0.5, MMRLambda: 0.7})

	cfg := config.Config{
		TopK:               10,
		MaxChunkTokens:     400,
		ChunkOverlapTokens: 40,
		HeadingChainDepth:  1,
		Workers:            1,
		JobQueueSize:       queueSize,
		JobTTL:             time.Hour,
		EmbeddingModel:     "text-embedding-3-large",
	}
	return NewOrchestrator(cfg, store, docs, retriever, generate.NewGenerator(completer), testLogger())
}

const sampleMarkdown = `# Refund Policy

Customers can request a refund within 30 days of purchase. Refunds are
processed to the original payment method in 5 business days.

## Exceptions

Digital goods marked as final sale are not eligible for refunds.
`

func waitForDone(t *testing.T, o *Orchestrator, jobID string) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := o.GetJob(jobID); job != nil {
			snap := job.Snapshot()
			if snap.Status == StatusCompleted || snap.Status == StatusFailed {
				return snap
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %s to finish", jobID)
	return JobSnapshot{}
}

func TestOrchestrator_IngestSynchronous(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedCompleter{reply: "unused"})

	res, err := o.Ingest(context.Background(), "policy.md", []byte(sampleMarkdown))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.DocID == "" {
		t.Error("expected a doc id")
	}
	if res.Title != "policy" {
		t.Errorf("expected title %q, got %q", "policy", res.Title)
	}
	if res.ChunkCount < 1 {
		t.Errorf("expected at least one chunk, got %d", res.ChunkCount)
	}
	if _, err := os.Stat(res.StructuredPath); err != nil {
		t.Errorf("expected structured file at %s: %v", res.StructuredPath, err)
	}

	stats := o.store.Stats()
	if stats.TotalChunks != res.ChunkCount {
		t.Errorf("expected %d chunks in index, got %d", res.ChunkCount, stats.TotalChunks)
	}
	if stats.DocCount != 1 {
		t.Errorf("expected 1 document in index, got %d", stats.DocCount)
	}
}

func TestOrchestrator_IngestUnsupportedType(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedCompleter{})

	_, err := o.Ingest(context.Background(), "image.png", []byte("not a document"))
	if err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}

func TestOrchestrator_EnqueueProcessesJob(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedCompleter{})
	o.Start(context.Background())
	defer o.Stop()

	job, duplicate, err := o.Enqueue("policy.md", []byte(sampleMarkdown))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if duplicate {
		t.Error("expected a fresh job, not a duplicate")
	}

	snap := waitForDone(t, o, job.ID)
	if snap.Status != StatusCompleted {
		t.Fatalf("expected job to complete, got %q with errors %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Result == nil {
		t.Fatal("expected a result on the completed job")
	}
	if snap.Result.DocID == "" {
		t.Error("expected a doc id in the result")
	}
	if snap.Progress.ChunksIndexed != snap.Progress.TotalChunks {
		t.Errorf("expected all %d chunks indexed, got %d",
			snap.Progress.TotalChunks, snap.Progress.ChunksIndexed)
	}
}

func TestOrchestrator_EnqueueDeduplicates(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedCompleter{})

	first, duplicate, err := o.Enqueue("policy.md", []byte(sampleMarkdown))
	if err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if duplicate {
		t.Error("expected first upload not to be a duplicate")
	}

	second, duplicate, err := o.Enqueue("renamed.md", []byte(sampleMarkdown))
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if !duplicate {
		t.Error("expected identical bytes to be flagged as duplicate")
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing job back, got %q and %q", first.ID, second.ID)
	}
}

func TestOrchestrator_EnqueueQueueFull(t *testing.T) {
	// Queue of one, no workers draining it.
	o := newTestOrchestratorQueue(t, &scriptedCompleter{}, 1)

	if _, _, err := o.Enqueue("a.md", []byte("# A\n\nfirst")); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	_, _, err := o.Enqueue("b.md", []byte("# B\n\nsecond"))
	if err == nil {
		t.Fatal("expected queue-full error")
	}
	if !strings.Contains(err.Error(), "queue is full") {
		t.Errorf("expected queue-full error, got %v", err)
	}
}

func TestOrchestrator_AskQuestion(t *testing.T) {
	completer := &scriptedCompleter{reply: "Refunds are processed in 5 business days."}
	o := newTestOrchestrator(t, completer)

	res, err := o.Ingest(context.Background(), "policy.md", []byte(sampleMarkdown))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	ask, err := o.AskQuestion(context.Background(), "what is the refund policy", nil, 0)
	if err != nil {
		t.Fatalf("AskQuestion: %v", err)
	}

	if ask.Query != "what is the refund policy" {
		t.Errorf("expected query echoed back, got %q", ask.Query)
	}
	if ask.Answer != "Refunds are processed in 5 business days." {
		t.Errorf("unexpected answer %q", ask.Answer)
	}
	if len(ask.Citations) == 0 {
		t.Fatal("expected citations for a grounded answer")
	}
	if ask.Citations[0].DocID != res.DocID {
		t.Errorf("expected citation for doc %s, got %s", res.DocID, ask.Citations[0].DocID)
	}
	if ask.TotalSources != 1 {
		t.Errorf("expected 1 distinct source, got %d", ask.TotalSources)
	}

	calls := completer.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(calls))
	}
	if !strings.Contains(calls[0], "Query: what is the refund policy") {
		t.Error("expected the query in the prompt")
	}
}

func TestOrchestrator_AskQuestionEmptyQuery(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedCompleter{})

	_, err := o.AskQuestion(context.Background(), "   ", nil, 0)
	if !errors.Is(err, retrieval.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestOrchestrator_AskQuestionNoDocuments(t *testing.T) {
	completer := &scriptedCompleter{reply: "should not be called"}
	o := newTestOrchestrator(t, completer)

	ask, err := o.AskQuestion(context.Background(), "anything indexed?", nil, 0)
	if err != nil {
		t.Fatalf("AskQuestion: %v", err)
	}
	if ask.Confidence != generate.ConfidenceLow {
		t.Errorf("expected low confidence with no sources, got %q", ask.Confidence)
	}
	if len(ask.Citations) != 0 {
		t.Errorf("expected no citations, got %d", len(ask.Citations))
	}
	if ask.TotalSources != 0 {
		t.Errorf("expected 0 sources, got %d", ask.TotalSources)
	}
	if len(completer.calls()) != 0 {
		t.Error("expected no model call with an empty index")
	}
}

func TestOrchestrator_GenerateReportDefaultQuery(t *testing.T) {
	completer := &scriptedCompleter{reply: "Section body."}
	o := newTestOrchestrator(t, completer)

	if _, err := o.Ingest(context.Background(), "policy.md", []byte(sampleMarkdown)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	report, err := o.GenerateReport(context.Background(), ReportRequest{Query: "   "})
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if report.Query != defaultReportQuery {
		t.Errorf("expected the default report query, got %q", report.Query)
	}
	if len(report.Sections) != len(generate.DefaultReportSections) {
		t.Fatalf("expected %d sections, got %d",
			len(generate.DefaultReportSections), len(report.Sections))
	}
	for i, sec := range report.Sections {
		if sec.Name != generate.DefaultReportSections[i] {
			t.Errorf("section %d: expected %q, got %q", i, generate.DefaultReportSections[i], sec.Name)
		}
	}
	for _, prompt := range completer.calls() {
		if !strings.Contains(prompt, defaultReportQuery) {
			t.Error("expected every section prompt to carry the default query")
			break
		}
	}
}

func TestOrchestrator_DeleteDocuments(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedCompleter{})

	res, err := o.Ingest(context.Background(), "policy.md", []byte(sampleMarkdown))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	del, err := o.DeleteDocuments([]string{res.DocID})
	if err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if len(del.DeletedDocIDs) != 1 || del.DeletedDocIDs[0] != res.DocID {
		t.Errorf("expected deleted doc ids [%s], got %v", res.DocID, del.DeletedDocIDs)
	}
	if len(del.DeletedFiles) != 1 {
		t.Errorf("expected 1 deleted file, got %v", del.DeletedFiles)
	}

	if stats := o.store.Stats(); stats.TotalChunks != 0 {
		t.Errorf("expected empty index after delete, got %d chunks", stats.TotalChunks)
	}
	if n := o.docs.Count(); n != 0 {
		t.Errorf("expected no structured documents after delete, got %d", n)
	}
}

func TestOrchestrator_Status(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedCompleter{})

	res, err := o.Ingest(context.Background(), "policy.md", []byte(sampleMarkdown))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	st := o.Status()
	if st.Status != "operational" {
		t.Errorf("expected status operational, got %q", st.Status)
	}
	if st.VectorStore.Type != vectorstore.StoreType {
		t.Errorf("expected vector store type %q, got %q", vectorstore.StoreType, st.VectorStore.Type)
	}
	if st.VectorStore.TotalChunks != res.ChunkCount {
		t.Errorf("expected %d chunks, got %d", res.ChunkCount, st.VectorStore.TotalChunks)
	}
	if st.VectorStore.DocCount != 1 {
		t.Errorf("expected 1 doc, got %d", st.VectorStore.DocCount)
	}
	if st.StructuredDocuments != 1 {
		t.Errorf("expected 1 structured document, got %d", st.StructuredDocuments)
	}
	if st.Config.EmbeddingModel != "text-embedding-3-large" {
		t.Errorf("unexpected embedding model %q", st.Config.EmbeddingModel)
	}
	if st.Config.TopK != 10 {
		t.Errorf("expected top_k 10, got %d", st.Config.TopK)
	}
	if _, err := time.Parse(time.RFC3339, st.Timestamp); err != nil {
		t.Errorf("expected RFC3339 timestamp, got %q", st.Timestamp)
	}
}
