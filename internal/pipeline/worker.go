package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omisdami/docrag/internal/chunker"
	"github.com/omisdami/docrag/internal/docstore"
	"github.com/omisdami/docrag/internal/extract"
	"github.com/omisdami/docrag/internal/vectorstore"
)

// Worker processes a single document ingestion job.
type Worker struct {
	store    *vectorstore.Store
	docs     *docstore.Store
	log      *slog.Logger
	chunkCfg chunker.Config
}

func NewWorker(store *vectorstore.Store, docs *docstore.Store, log *slog.Logger, chunkCfg chunker.Config) *Worker {
	return &Worker{
		store:    store,
		docs:     docs,
		log:      log,
		chunkCfg: chunkCfg,
	}
}

// Process runs the full ingest pipeline for a job: extract, chunk, embed and
// index, persist the structured document. The returned error is also
// recorded on the job, so queue consumers can ignore it.
func (w *Worker) Process(ctx context.Context, job *Job) error {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	extractor, err := extract.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return err
	}

	doc, err := extractor.Extract(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return err
	}
	job.SetDocID(doc.Metadata.DocID)
	log = log.With("doc_id", doc.Metadata.DocID)

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.ChunkDocument(doc, w.chunkCfg)
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	if len(chunks) == 0 {
		err := errors.New("no extractable content")
		log.Warn("no chunks produced")
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "chunking")
		return err
	}

	// Phase 3: Embed and index, retrying transient embedding failures.
	job.SetStatus(StatusEmbedding, "embedding")
	var indexErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		indexErr = w.store.Add(ctx, chunks)
		if indexErr == nil || !IsRetryable(indexErr) {
			break
		}
		log.Warn("retryable indexing error", "attempt", attempt, "error", indexErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			job.AddError(ctx.Err().Error())
			job.SetStatus(StatusFailed, "embedding")
			return ctx.Err()
		}
	}
	if indexErr != nil {
		log.Error("indexing failed", "error", indexErr)
		job.AddError(indexErr.Error())
		job.SetStatus(StatusFailed, "embedding")
		return indexErr
	}
	job.SetChunksIndexed(len(chunks))

	// Phase 4: Persist the structured document.
	job.SetStatus(StatusStoring, "storing")
	structuredPath, err := w.docs.Save(doc)
	if err != nil {
		log.Error("structured save failed", "error", err)
		job.AddError(fmt.Sprintf("save structured: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return err
	}

	job.SetResult(&IngestResult{
		DocID:          doc.Metadata.DocID,
		Title:          doc.Metadata.Title,
		Pages:          doc.Metadata.Pages,
		ChunkCount:     len(chunks),
		StructuredPath: structuredPath,
		IngestionTime:  time.Now().Format(time.RFC3339),
	})
	job.SetStatus(StatusCompleted, "done")
	log.Info("ingestion complete", "chunks", len(chunks), "pages", doc.Metadata.Pages)
	return nil
}
