package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRunEmpty(t *testing.T) {
	counts := Run(context.Background(), nil, 2, func(ctx context.Context, n int) Outcome {
		return Succeeded
	})
	if counts.Total() != 0 {
		t.Errorf("expected zero counts, got %+v", counts)
	}
}

func TestBatchIsolation(t *testing.T) {
	// Item #3 fails; the rest must still complete.
	items := []int{1, 2, 3, 4, 5}
	var processed atomic.Int64

	counts := Run(context.Background(), items, 2, func(ctx context.Context, n int) Outcome {
		processed.Add(1)
		if n == 3 {
			panic(errors.New("boom"))
		}
		return Succeeded
	})

	if processed.Load() != 5 {
		t.Errorf("expected all 5 items processed, got %d", processed.Load())
	}
	if counts.Succeeded != 4 {
		t.Errorf("expected 4 successes, got %d", counts.Succeeded)
	}
	if counts.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", counts.Failed)
	}
}

func TestWindowBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	peak := 0

	block := make(chan struct{})
	started := make(chan struct{}, 16)

	done := make(chan Counts)
	go func() {
		done <- Run(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(ctx context.Context, n int) Outcome {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			started <- struct{}{}
			<-block

			mu.Lock()
			inFlight--
			mu.Unlock()
			return Succeeded
		})
	}()

	// First window starts both items; nothing beyond the window may start.
	<-started
	<-started
	select {
	case <-started:
		t.Fatal("third item started before first window settled")
	default:
	}

	close(block)
	counts := <-done
	if counts.Succeeded != 5 {
		t.Errorf("expected 5 successes, got %+v", counts)
	}
	if peak > 2 {
		t.Errorf("concurrency limit exceeded: peak %d", peak)
	}
}

func TestWindowsRunInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int

	Run(context.Background(), []int{1, 2, 3, 4, 5, 6}, 3, func(ctx context.Context, n int) Outcome {
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		return Succeeded
	})

	if len(order) != 6 {
		t.Fatalf("expected 6 items, got %d", len(order))
	}
	// Items within a window are unordered, but window k+1 never precedes k.
	window := func(n int) int { return (n - 1) / 3 }
	for i := 1; i < len(order); i++ {
		if window(order[i]) < window(order[i-1]) {
			t.Errorf("window order violated: %v", order)
			break
		}
	}
}

func TestOutcomeAggregation(t *testing.T) {
	outcomes := map[int]Outcome{1: Succeeded, 2: Failed, 3: Retried, 4: Skipped, 5: Succeeded}
	counts := Run(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(ctx context.Context, n int) Outcome {
		return outcomes[n]
	})
	want := Counts{Succeeded: 2, Failed: 1, Retried: 1, Skipped: 1}
	if counts != want {
		t.Errorf("expected %+v, got %+v", want, counts)
	}
}

func TestZeroLimitTreatedAsOne(t *testing.T) {
	counts := Run(context.Background(), []int{1, 2}, 0, func(ctx context.Context, n int) Outcome {
		return Succeeded
	})
	if counts.Succeeded != 2 {
		t.Errorf("expected 2 successes, got %+v", counts)
	}
}
