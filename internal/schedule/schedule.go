// Package schedule lets a periodically-invoked process approximate independent
// per-task intervals using only persisted run timestamps.
package schedule

import (
	"errors"
	"log"
	"time"

	"storyfeed/internal/store"
)

// RunStore is the slice of the store the scheduler needs.
type RunStore interface {
	WorkerRun(taskName string) (*store.WorkerRun, error)
	RecordWorkerRun(taskName string, runTime time.Time) error
}

// Keeper decides whether named tasks are due based on their last recorded run.
type Keeper struct {
	runs RunStore
	now  func() time.Time
}

// NewKeeper creates a Keeper backed by the given run store.
func NewKeeper(runs RunStore) *Keeper {
	return &Keeper{runs: runs, now: time.Now}
}

// ShouldRun reports whether at least interval has elapsed since the task's
// last recorded run. Tasks with no run record are always due. Storage errors
// fail open: a missed skip is cheaper than a stalled pipeline.
func (k *Keeper) ShouldRun(taskName string, interval time.Duration) bool {
	wr, err := k.runs.WorkerRun(taskName)
	if errors.Is(err, store.ErrNotFound) {
		return true
	}
	if err != nil {
		log.Printf("run record check for %q failed, running anyway: %v", taskName, err)
		return true
	}
	return k.now().Sub(wr.LastRunTime) >= interval
}

// RecordRun stores now as the task's last run time. Call it once the stage's
// batch has been dispatched; the interval governs how often a stage starts,
// not how long it runs.
func (k *Keeper) RecordRun(taskName string) error {
	return k.runs.RecordWorkerRun(taskName, k.now())
}
