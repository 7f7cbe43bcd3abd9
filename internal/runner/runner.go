// Package runner is the bounded-concurrency batch executor shared by every
// pipeline stage. It partitions work into fixed-size windows and runs each
// window's items concurrently, so peak concurrency against rate-limited
// external services is bounded exactly.
package runner

import (
	"context"
	"log"
	"sync"
)

// Outcome classifies the result of processing a single item.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	Retried
	Skipped
)

// Counts aggregates outcomes across a batch.
type Counts struct {
	Succeeded int
	Failed    int
	Retried   int
	Skipped   int
}

// Add merges other into c.
func (c *Counts) Add(other Counts) {
	c.Succeeded += other.Succeeded
	c.Failed += other.Failed
	c.Retried += other.Retried
	c.Skipped += other.Skipped
}

// Total returns the number of items accounted for.
func (c Counts) Total() int {
	return c.Succeeded + c.Failed + c.Retried + c.Skipped
}

// record tallies a single outcome.
func (c *Counts) record(o Outcome) {
	switch o {
	case Succeeded:
		c.Succeeded++
	case Failed:
		c.Failed++
	case Retried:
		c.Retried++
	case Skipped:
		c.Skipped++
	}
}

// Run processes items in consecutive windows of at most limit, running each
// window's items concurrently and waiting for the whole window to settle
// before starting the next. A panic in one item's work function is contained
// and counted as a failure; sibling items are unaffected. The executor
// performs no persistence of its own; status writes belong to work.
func Run[T any](ctx context.Context, items []T, limit int, work func(context.Context, T) Outcome) Counts {
	var counts Counts
	if len(items) == 0 || work == nil {
		return counts
	}
	if limit < 1 {
		limit = 1
	}

	for start := 0; start < len(items); start += limit {
		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		window := items[start:end]

		outcomes := make([]Outcome, len(window))
		var wg sync.WaitGroup
		for i, item := range window {
			wg.Add(1)
			go func(i int, item T) {
				defer wg.Done()
				outcomes[i] = runOne(ctx, item, work)
			}(i, item)
		}
		wg.Wait()

		for _, o := range outcomes {
			counts.record(o)
		}
	}

	return counts
}

// runOne invokes work with panic containment.
func runOne[T any](ctx context.Context, item T, work func(context.Context, T) Outcome) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered panic in batch work: %v", r)
			outcome = Failed
		}
	}()
	return work(ctx, item)
}
