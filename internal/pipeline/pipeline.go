// Package pipeline orchestrates the four stage workers. It owns no long-lived
// process of its own: every external tick runs one orchestrator pass to
// completion, and per-stage intervals come from persisted run timestamps.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"storyfeed/internal/runner"
	"storyfeed/internal/schedule"
)

// StageWorker is one processing stage. Run never returns an error: stage
// workers convert item-level failures into counts.
type StageWorker interface {
	Name() string
	Run(ctx context.Context) runner.Counts
}

// Stage pairs a worker with its scheduling interval.
type Stage struct {
	Worker   StageWorker
	Interval time.Duration
}

// StageResult reports what happened to one stage during a pass.
type StageResult struct {
	Name   string
	Ran    bool
	Counts runner.Counts
	Err    error
}

// Orchestrator evaluates the stages in fixed order on every tick.
type Orchestrator struct {
	keeper *schedule.Keeper
	stages []Stage
}

// NewOrchestrator creates an orchestrator over the given stages. Stage order
// is the processing order: fetch, extract, summarize, notify.
func NewOrchestrator(keeper *schedule.Keeper, stages []Stage) *Orchestrator {
	return &Orchestrator{keeper: keeper, stages: stages}
}

// Tick runs every stage that is due, in order. A failure inside one stage is
// contained; the remaining stages are still evaluated on the same tick.
func (o *Orchestrator) Tick(ctx context.Context) []StageResult {
	results := make([]StageResult, 0, len(o.stages))
	for _, stage := range o.stages {
		name := stage.Worker.Name()
		if !o.keeper.ShouldRun(name, stage.Interval) {
			results = append(results, StageResult{Name: name})
			continue
		}
		results = append(results, o.runStage(ctx, stage))
	}
	return results
}

// RunStage runs a single stage by name. With force set the interval check is
// bypassed; either way the run is recorded.
func (o *Orchestrator) RunStage(ctx context.Context, name string, force bool) (StageResult, error) {
	for _, stage := range o.stages {
		if stage.Worker.Name() != name {
			continue
		}
		if !force && !o.keeper.ShouldRun(name, stage.Interval) {
			return StageResult{Name: name}, nil
		}
		return o.runStage(ctx, stage), nil
	}
	return StageResult{}, fmt.Errorf("unknown stage %q", name)
}

// StageNames lists the configured stages in processing order.
func (o *Orchestrator) StageNames() []string {
	names := make([]string, len(o.stages))
	for i, stage := range o.stages {
		names[i] = stage.Worker.Name()
	}
	return names
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage) (result StageResult) {
	name := stage.Worker.Name()
	result = StageResult{Name: name, Ran: true}

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("stage %s panicked: %v", name, r)
			log.Printf("Stage %s panicked: %v", name, r)
		}
		// The interval governs how often a stage starts; record the run
		// even when the stage blew up so a broken stage cannot spin.
		if err := o.keeper.RecordRun(name); err != nil {
			log.Printf("Error recording run for %s: %v", name, err)
		}
	}()

	result.Counts = stage.Worker.Run(ctx)
	return result
}
