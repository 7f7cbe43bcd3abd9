package notify

import (
	"context"
	"errors"
	"log"

	"storyfeed/internal/runner"
	"storyfeed/internal/store"
	"storyfeed/internal/summarize"
)

// Blobs is the content-store slice the worker needs.
type Blobs interface {
	Get(key string) ([]byte, error)
}

// Worker runs the notify stage: deliver completed summaries and mark items
// sent once at least one channel accepted them. Delivery failures leave the
// item completed so the next pass tries again; notify has no retry state.
type Worker struct {
	store     *store.Store
	blobs     Blobs
	channels  []Channel
	batchSize int
}

// NewWorker creates a notify stage worker.
func NewWorker(st *store.Store, blobs Blobs, channels []Channel, batchSize int) *Worker {
	return &Worker{
		store:     st,
		blobs:     blobs,
		channels:  channels,
		batchSize: batchSize,
	}
}

// Name identifies the worker's task for scheduling.
func (w *Worker) Name() string { return "notify" }

// Run delivers one batch of completed items. Deliveries run sequentially:
// chat APIs rate-limit aggressively and a notify batch is small.
func (w *Worker) Run(ctx context.Context) runner.Counts {
	candidates, err := w.store.NotifyCandidates(w.batchSize)
	if err != nil {
		log.Printf("Error listing notify candidates: %v", err)
		return runner.Counts{}
	}
	if len(candidates) == 0 {
		return runner.Counts{}
	}

	if len(w.channels) == 0 {
		log.Printf("No notification channels configured; %d items left undelivered", len(candidates))
		return runner.Counts{Skipped: len(candidates)}
	}

	counts := runner.Run(ctx, candidates, 1, w.processItem)
	log.Printf("Notify pass: %d sent, %d failed, %d skipped",
		counts.Succeeded, counts.Failed, counts.Skipped)
	return counts
}

func (w *Worker) processItem(ctx context.Context, it store.Item) runner.Outcome {
	if it.SummaryRef == nil {
		log.Printf("Completed item %d has no summary ref; leaving untouched", it.ID)
		return runner.Failed
	}

	data, err := w.blobs.Get(*it.SummaryRef)
	if err != nil {
		log.Printf("Error reading summary for item %d: %v", it.ID, err)
		return runner.Failed
	}
	summary, err := summarize.DecodeSummary(data)
	if err != nil {
		log.Printf("Error decoding summary for item %d: %v", it.ID, err)
		return runner.Failed
	}

	delivered := 0
	for _, ch := range w.channels {
		if err := ch.Send(ctx, it, *summary); err != nil {
			log.Printf("Delivery to %s failed for item %d: %v", ch.Name(), it.ID, err)
			continue
		}
		delivered++
	}

	// One successful channel is enough; the item stays completed otherwise
	// and the next pass retries from unchanged source data.
	if delivered == 0 {
		return runner.Failed
	}

	if err := w.store.MarkSent(it.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return runner.Skipped
		}
		log.Printf("Error marking item %d sent: %v", it.ID, err)
		return runner.Failed
	}

	log.Printf("Delivered to %d/%d channels: %s", delivered, len(w.channels), it.Title)
	return runner.Succeeded
}
