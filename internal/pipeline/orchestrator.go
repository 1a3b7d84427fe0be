package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omisdami/docrag/internal/chunker"
	"github.com/omisdami/docrag/internal/config"
	"github.com/omisdami/docrag/internal/docstore"
	"github.com/omisdami/docrag/internal/document"
	"github.com/omisdami/docrag/internal/generate"
	"github.com/omisdami/docrag/internal/retrieval"
	"github.com/omisdami/docrag/internal/vectorstore"
)

// defaultReportQuery stands in when a report request carries no query.
const defaultReportQuery = "Provide a comprehensive analysis of the key information, findings, and recommendations from the documents."

// reportTopK is the retrieval depth for report generation.
const reportTopK = 20

// Orchestrator wires the ingestion pipeline (queue + workers) and the
// synchronous query operations.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job

	store     *vectorstore.Store
	docs      *docstore.Store
	retriever *retrieval.Retriever
	generator *generate.Generator

	log      *slog.Logger
	cfg      config.Config
	chunkCfg chunker.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, store *vectorstore.Store, docs *docstore.Store, retriever *retrieval.Retriever, generator *generate.Generator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.JobQueueSize),
		store:     store,
		docs:      docs,
		retriever: retriever,
		generator: generator,
		log:       log,
		cfg:       cfg,
		chunkCfg: chunker.Config{
			MaxTokens:     cfg.MaxChunkTokens,
			OverlapTokens: cfg.ChunkOverlapTokens,
			HeadingDepth:  cfg.HeadingChainDepth,
		},
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.store, o.docs, o.log, o.chunkCfg)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Enqueue registers an ingestion job for the uploaded file. Identical bytes
// already queued, processing, or completed come back as the existing job,
// with duplicate set.
func (o *Orchestrator) Enqueue(filename string, data []byte) (*Job, bool, error) {
	hash := ContentHashHex(data)
	if existing := o.jobs.FindByHash(hash); existing != nil {
		return existing, true, nil
	}

	now := time.Now()
	job := &Job{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return job, false, nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return nil, false, fmt.Errorf("job queue is full (%d)", o.cfg.JobQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Ingest runs the full ingestion synchronously, bypassing the queue. The
// job is still registered so its progress is visible while running.
func (o *Orchestrator) Ingest(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	now := time.Now()
	job := &Job{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
	o.jobs.Put(job)

	w := NewWorker(o.store, o.docs, o.log, o.chunkCfg)
	if err := w.Process(ctx, job); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", filename, err)
	}
	return job.Snapshot().Result, nil
}

// AskResult is a grounded answer with citations.
type AskResult struct {
	Query        string              `json:"query"`
	Answer       string              `json:"answer"`
	Confidence   string              `json:"confidence"`
	Citations    []document.Citation `json:"citations"`
	TotalSources int                 `json:"total_sources"`
}

// AskQuestion retrieves supporting chunks and generates a direct answer.
// k <= 0 falls back to the configured top_k.
func (o *Orchestrator) AskQuestion(ctx context.Context, query string, docIDs []string, k int) (*AskResult, error) {
	if k <= 0 {
		k = o.cfg.TopK
	}
	results, err := o.retriever.Retrieve(ctx, query, k, docIDs)
	if err != nil {
		return nil, err
	}
	answer, err := o.generator.Answer(ctx, query, results)
	if err != nil {
		return nil, err
	}
	return &AskResult{
		Query:        query,
		Answer:       answer.Answer,
		Confidence:   answer.Confidence,
		Citations:    answer.Citations,
		TotalSources: countDistinctDocs(answer.Citations),
	}, nil
}

// ReportRequest carries the report endpoint's options.
type ReportRequest struct {
	Query    string
	DocIDs   []string
	Style    string
	Length   string
	Sections []string
}

// GenerateReport retrieves a wide result set and generates a sectioned
// report. An empty query falls back to a generic analysis query.
func (o *Orchestrator) GenerateReport(ctx context.Context, req ReportRequest) (*generate.ReportResult, error) {
	query := req.Query
	if strings.TrimSpace(query) == "" {
		query = defaultReportQuery
	}
	results, err := o.retriever.Retrieve(ctx, query, reportTopK, req.DocIDs)
	if err != nil {
		return nil, err
	}
	return o.generator.Report(ctx, query, results, req.Style, req.Length, req.Sections)
}

// ListDocuments returns the ids of all structured documents.
func (o *Orchestrator) ListDocuments() ([]string, error) {
	return o.docs.List()
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	DeletedDocIDs []string `json:"deleted_doc_ids"`
	DeletedFiles  []string `json:"deleted_files"`
	Timestamp     string   `json:"timestamp"`
}

// DeleteDocuments removes documents from the vector index and the
// structured store. The lexical index follows via change notification.
func (o *Orchestrator) DeleteDocuments(docIDs []string) (*DeleteResult, error) {
	if err := o.store.Delete(docIDs); err != nil {
		return nil, fmt.Errorf("delete from index: %w", err)
	}
	deleted := o.docs.Delete(docIDs)
	return &DeleteResult{
		DeletedDocIDs: docIDs,
		DeletedFiles:  deleted,
		Timestamp:     time.Now().Format(time.RFC3339),
	}, nil
}

// VectorStoreStatus describes the vector index in a status report.
type VectorStoreStatus struct {
	Type        string  `json:"type"`
	TotalChunks int     `json:"total_chunks"`
	DocCount    int     `json:"doc_count"`
	IndexSizeMB float64 `json:"index_size_mb"`
}

// ConfigStatus echoes the retrieval-relevant configuration.
type ConfigStatus struct {
	EmbeddingModel     string `json:"embedding_model"`
	MaxChunkTokens     int    `json:"max_chunk_tokens"`
	ChunkOverlapTokens int    `json:"chunk_overlap_tokens"`
	TopK               int    `json:"top_k"`
}

// StatusResult is the system status document.
type StatusResult struct {
	Status              string            `json:"status"`
	VectorStore         VectorStoreStatus `json:"vector_store"`
	StructuredDocuments int               `json:"structured_documents"`
	Config              ConfigStatus      `json:"config"`
	Timestamp           string            `json:"timestamp"`
}

// Status reports index statistics, document counts, and configuration.
func (o *Orchestrator) Status() *StatusResult {
	stats := o.store.Stats()
	return &StatusResult{
		Status: "operational",
		VectorStore: VectorStoreStatus{
			Type:        vectorstore.StoreType,
			TotalChunks: stats.TotalChunks,
			DocCount:    stats.DocCount,
			IndexSizeMB: stats.IndexSizeMB,
		},
		StructuredDocuments: o.docs.Count(),
		Config: ConfigStatus{
			EmbeddingModel:     o.cfg.EmbeddingModel,
			MaxChunkTokens:     o.cfg.MaxChunkTokens,
			ChunkOverlapTokens: o.cfg.ChunkOverlapTokens,
			TopK:               o.cfg.TopK,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func countDistinctDocs(citations []document.Citation) int {
	seen := make(map[string]struct{})
	for _, c := range citations {
		seen[c.DocID] = struct{}{}
	}
	return len(seen)
}
