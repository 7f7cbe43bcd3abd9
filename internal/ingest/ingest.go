// Package ingest runs the fetch stage: it pulls the source feed's top story
// ids and upserts one item per story.
package ingest

import (
	"context"
	"log"
	"sync/atomic"

	"storyfeed/internal/feed"
	"storyfeed/internal/runner"
	"storyfeed/internal/store"
)

// Worker ingests stories from a feed source into the item repository.
type Worker struct {
	store       *store.Store
	source      feed.Source
	topLimit    int
	concurrency int

	newItems atomic.Int64
}

// NewWorker creates a fetch stage worker.
func NewWorker(st *store.Store, source feed.Source, topLimit, concurrency int) *Worker {
	return &Worker{
		store:       st,
		source:      source,
		topLimit:    topLimit,
		concurrency: concurrency,
	}
}

// Name identifies the worker's task for scheduling.
func (w *Worker) Name() string { return "fetch" }

// Run lists the feed's top ids and upserts each resolvable story. A refresh
// of an already-known item counts as a success; it never touches the item's
// pipeline progress.
func (w *Worker) Run(ctx context.Context) runner.Counts {
	ids, err := w.source.TopIDs(ctx, w.topLimit)
	if err != nil {
		log.Printf("Error listing top stories: %v", err)
		return runner.Counts{}
	}
	if len(ids) == 0 {
		return runner.Counts{}
	}

	w.newItems.Store(0)
	counts := runner.Run(ctx, ids, w.concurrency, w.processID)
	log.Printf("Fetch pass: %d stories upserted (%d new), %d skipped, %d failed",
		counts.Succeeded, w.newItems.Load(), counts.Skipped, counts.Failed)
	return counts
}

func (w *Worker) processID(ctx context.Context, id int64) runner.Outcome {
	story, err := w.source.Story(ctx, id)
	if err != nil {
		log.Printf("Error loading story %d: %v", id, err)
		return runner.Failed
	}
	if story == nil {
		// Not a story, or dead/deleted.
		return runner.Skipped
	}

	var url *string
	if story.URL != "" {
		url = &story.URL
	}

	created, err := w.store.UpsertItem(story.ID, story.Title, url, story.Author, story.Time, story.Score)
	if err != nil {
		log.Printf("Error upserting story %d: %v", id, err)
		return runner.Failed
	}
	if created {
		w.newItems.Add(1)
		log.Printf("New story: %s", story.Title)
	}
	return runner.Succeeded
}
