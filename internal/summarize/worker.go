package summarize

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storyfeed/internal/blob"
	"storyfeed/internal/runner"
	"storyfeed/internal/store"
)

// Summarizer is the summarization contract the worker depends on.
type Summarizer interface {
	Summarize(ctx context.Context, title, text string) (*Summary, error)
}

// Blobs is the content-store slice the worker needs.
type Blobs interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
}

// Worker runs the summarize stage: claim extracted items, summarize their
// stored text, and advance or retry each one.
type Worker struct {
	store       *store.Store
	blobs       Blobs
	svc         Summarizer
	batchSize   int
	concurrency int
	maxRetries  int
}

// NewWorker creates a summarize stage worker.
func NewWorker(st *store.Store, blobs Blobs, svc Summarizer, batchSize, concurrency, maxRetries int) *Worker {
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
func (w *Worker) Name() string { return "summarize" }

// Run processes one batch of summarization candidates.
func (w *Worker) Run(ctx context.Context) runner.Counts {
	candidates, err := w.store.SummarizeCandidates(w.batchSize, w.maxRetries)
	if err != nil {
		log.Printf("Error listing summarize candidates: %v", err)
		return runner.Counts{}
	}
	if len(candidates) == 0 {
		return runner.Counts{}
	}

	counts := runner.Run(ctx, candidates, w.concurrency, w.processItem)
	log.Printf("Summarize pass: %d completed, %d retried, %d failed, %d skipped",
		counts.Succeeded, counts.Retried, counts.Failed, counts.Skipped)
	return counts
}

func (w *Worker) processItem(ctx context.Context, it store.Item) runner.Outcome {
	if err := w.store.MarkSummarizing(it.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return runner.Skipped
		}
		log.Printf("Error claiming item %d: %v", it.ID, err)
		return runner.Failed
	}

	if it.ContentRef == nil {
		// Should not happen for extracted items; do not burn a retry on it.
		w.markFailed(it.ID, "item has no content ref")
		return runner.Failed
	}

	text, err := w.blobs.Get(*it.ContentRef)
	if err != nil {
		return w.retryOrFail(it, fmt.Sprintf("reading content: %v", err))
	}

	summary, err := w.svc.Summarize(ctx, it.Title, string(text))
	if err != nil {
		return w.retryOrFail(it, fmt.Sprintf("summarization failed: %v", err))
	}

	encoded, err := summary.Encode()
	if err != nil {
		return w.retryOrFail(it, fmt.Sprintf("encoding summary: %v", err))
	}

	ref := blob.SummaryKey(it.ID)
	if err := w.blobs.Put(ref, encoded); err != nil {
		return w.retryOrFail(it, fmt.Sprintf("storing summary: %v", err))
	}

	if err := w.store.MarkCompleted(it.ID, ref); err != nil {
		return w.retryOrFail(it, fmt.Sprintf("recording summary: %v", err))
	}

	log.Printf("Summarized: %s", it.Title)
	return runner.Succeeded
}

func (w *Worker) retryOrFail(it store.Item, msg string) runner.Outcome {
	if it.RetryCount < w.maxRetries {
		if err := w.store.MarkRetry(it.ID, store.StatusRetrySummarize, msg); err != nil {
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
