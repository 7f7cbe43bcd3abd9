package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storyfeed/internal/blob"
	"storyfeed/internal/runner"
	"storyfeed/internal/store"
)

// Extractor is the extraction service contract the worker depends on.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (*Result, error)
}

// Blobs is the content-store slice the worker needs.
type Blobs interface {
	Put(key string, data []byte) error
}

// Worker runs the extract stage: claim candidates, extract readable text,
// store it, and advance or retry each item.
type Worker struct {
	store       *store.Store
	blobs       Blobs
	svc         Extractor
	batchSize   int
	concurrency int
	maxRetries  int
}

// NewWorker creates an extract stage worker.
func NewWorker(st *store.Store, blobs Blobs, svc Extractor, batchSize, concurrency, maxRetries int) *Worker {
	return &Worker{
		store:       st,
		blobs:       blobs,
		svc:         svc,
		batchSize:   batchSize,
		concurrency: concurrency,
		maxRetries:  maxRetries,
	}
}

// Name identifies the worker's task for scheduling.
func (w *Worker) Name() string { return "extract" }

// Run processes one batch of extraction candidates.
func (w *Worker) Run(ctx context.Context) runner.Counts {
	candidates, err := w.store.ExtractCandidates(w.batchSize, w.maxRetries)
	if err != nil {
		log.Printf("Error listing extract candidates: %v", err)
		return runner.Counts{}
	}
	if len(candidates) == 0 {
		return runner.Counts{}
	}

	counts := runner.Run(ctx, candidates, w.concurrency, w.processItem)
	log.Printf("Extract pass: %d extracted, %d retried, %d failed, %d skipped",
		counts.Succeeded, counts.Retried, counts.Failed, counts.Skipped)
	return counts
}

func (w *Worker) processItem(ctx context.Context, it store.Item) runner.Outcome {
	if err := w.store.MarkExtracting(it.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Another invocation claimed it first.
			return runner.Skipped
		}
		log.Printf("Error claiming item %d: %v", it.ID, err)
		return runner.Failed
	}

	// Text-only stories have nothing to extract; not worth a retry.
	if it.URL == nil || *it.URL == "" {
		w.markFailed(it.ID, "item has no URL")
		return runner.Failed
	}

	result, err := w.svc.Extract(ctx, *it.URL)
	if err != nil {
		return w.retryOrFail(it, fmt.Sprintf("extraction failed: %v", err))
	}
	if result == nil {
		return w.retryOrFail(it, "no extractable content")
	}

	ref := blob.ContentKey(it.ID)
	if err := w.blobs.Put(ref, []byte(result.Text)); err != nil {
		return w.retryOrFail(it, fmt.Sprintf("storing content: %v", err))
	}

	if err := w.store.MarkExtracted(it.ID, ref); err != nil {
		return w.retryOrFail(it, fmt.Sprintf("recording extraction: %v", err))
	}

	log.Printf("Extracted content for: %s", it.Title)
	return runner.Succeeded
}

// retryOrFail returns the item to retry_extract while it has attempts left,
// otherwise moves it to the terminal failed status.
func (w *Worker) retryOrFail(it store.Item, msg string) runner.Outcome {
	if it.RetryCount < w.maxRetries {
		if err := w.store.MarkRetry(it.ID, store.StatusRetryExtract, msg); err != nil {
			log.Printf("Error marking item %d for retry: %v", it.ID, err)
			return runner.Failed
		}
		return runner.Retried
	}
	w.markFailed(it.ID, msg)
	return runner.Failed
}

func (w *Worker) markFailed(id int64, msg string) {
	if err := w.store.MarkFailed(id, msg); err != nil {
		log.Printf("Error marking item %d failed: %v", id, err)
	}
}
