package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(s string) *string { return &s }

func insertItem(t *testing.T, s *Store, id int64, url *string, score int) {
	t.Helper()
	created, err := s.UpsertItem(id, "Item", url, "tester", time.Now(), score)
	if err != nil {
		t.Fatalf("upsert item %d: %v", id, err)
	}
	if !created {
		t.Fatalf("expected item %d to be newly inserted", id)
	}
}

func TestUpsertInsertsPending(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 100, ptr("https://example.com/a"), 50)

	it, err := s.GetItem(100)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if it.Status != StatusPending {
		t.Errorf("expected pending, got %s", it.Status)
	}
	if it.RetryCount != 0 {
		t.Errorf("expected retry count 0, got %d", it.RetryCount)
	}
}

func TestUpsertRefreshPreservesProgress(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 100, ptr("https://example.com/a"), 50)

	if err := s.MarkExtracting(100); err != nil {
		t.Fatalf("mark extracting: %v", err)
	}
	if err := s.MarkExtracted(100, "content/100.txt"); err != nil {
		t.Fatalf("mark extracted: %v", err)
	}

	created, err := s.UpsertItem(100, "Updated title", ptr("https://example.com/a"), "tester", time.Now(), 900)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if created {
		t.Error("refresh reported as new insert")
	}

	it, _ := s.GetItem(100)
	if it.Title != "Updated title" || it.Score != 900 {
		t.Errorf("feed metadata not refreshed: %q score %d", it.Title, it.Score)
	}
	if it.Status != StatusExtracted {
		t.Errorf("refresh regressed status to %s", it.Status)
	}
	if it.ContentRef == nil || *it.ContentRef != "content/100.txt" {
		t.Error("refresh cleared content ref")
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetItem(42); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractCandidateOrdering(t *testing.T) {
	s := openTestStore(t)

	// Popular pending item.
	insertItem(t, s, 1, ptr("https://a.com"), 900)
	// Retry item with lower score must still rank first.
	insertItem(t, s, 2, ptr("https://b.com"), 10)
	mustTransition(t, s.MarkExtracting(2))
	mustTransition(t, s.MarkRetry(2, StatusRetryExtract, "boom"))

	candidates, err := s.ExtractCandidates(2, 3)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != 2 {
		t.Errorf("expected retry item first, got %d", candidates[0].ID)
	}
	if candidates[1].ID != 1 {
		t.Errorf("expected pending item second, got %d", candidates[1].ID)
	}
}

func TestCandidateOrderingWithinRetries(t *testing.T) {
	s := openTestStore(t)

	retry := func(id int64, times int) {
		for i := 0; i < times; i++ {
			mustTransition(t, s.MarkExtracting(id))
			mustTransition(t, s.MarkRetry(id, StatusRetryExtract, "boom"))
		}
	}
	insertItem(t, s, 1, ptr("https://a.com"), 5)
	insertItem(t, s, 2, ptr("https://b.com"), 500)
	retry(1, 1)
	retry(2, 2)

	candidates, err := s.ExtractCandidates(10, 3)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != 1 || candidates[1].ID != 2 {
		t.Errorf("expected lower retry count first, got %d then %d", candidates[0].ID, candidates[1].ID)
	}
}

func TestRetryCeilingRanksLast(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 1, ptr("https://a.com"), 10)
	insertItem(t, s, 2, ptr("https://b.com"), 5)

	maxRetries := 2
	for i := 0; i < maxRetries; i++ {
		mustTransition(t, s.MarkExtracting(1))
		mustTransition(t, s.MarkRetry(1, StatusRetryExtract, "boom"))
	}

	// The at-ceiling item stays selectable so a later pass can move it to
	// failed, but it no longer jumps the queue.
	candidates, err := s.ExtractCandidates(10, maxRetries)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != 2 || candidates[1].ID != 1 {
		t.Errorf("expected pending item before at-ceiling retry item, got %d then %d",
			candidates[0].ID, candidates[1].ID)
	}
}

func TestFailedIsTerminal(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 1, ptr("https://a.com"), 10)
	mustTransition(t, s.MarkExtracting(1))
	mustTransition(t, s.MarkFailed(1, "no luck"))

	if c, _ := s.ExtractCandidates(10, 99); len(c) != 0 {
		t.Error("failed item selected by extract query")
	}
	if c, _ := s.SummarizeCandidates(10, 99); len(c) != 0 {
		t.Error("failed item selected by summarize query")
	}
	if c, _ := s.NotifyCandidates(10); len(c) != 0 {
		t.Error("failed item selected by notify query")
	}
}

func TestTransitionConflict(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 1, ptr("https://a.com"), 10)

	if err := s.MarkExtracting(1); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// Second claim must observe the item is no longer pending.
	if err := s.MarkExtracting(1); err != ErrConflict {
		t.Errorf("expected ErrConflict on double claim, got %v", err)
	}
	// Transitions on unknown items conflict too.
	if err := s.MarkExtracting(999); err != ErrConflict {
		t.Errorf("expected ErrConflict for missing item, got %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 1, ptr("https://a.com"), 10)

	mustTransition(t, s.MarkExtracting(1))
	mustTransition(t, s.MarkExtracted(1, "content/1.txt"))
	mustTransition(t, s.MarkSummarizing(1))
	mustTransition(t, s.MarkCompleted(1, "summary/1.json"))

	c, err := s.NotifyCandidates(10)
	if err != nil {
		t.Fatalf("notify candidates: %v", err)
	}
	if len(c) != 1 {
		t.Fatalf("expected 1 notify candidate, got %d", len(c))
	}
	if c[0].ContentRef == nil || c[0].SummaryRef == nil {
		t.Error("completed item missing refs")
	}

	mustTransition(t, s.MarkSent(1))
	it, _ := s.GetItem(1)
	if it.Status != StatusSent {
		t.Errorf("expected sent, got %s", it.Status)
	}
	if it.LastError != nil {
		t.Errorf("expected last error cleared, got %q", *it.LastError)
	}
}

func TestRetryIncrementsAndRecordsError(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 1, ptr("https://a.com"), 10)

	mustTransition(t, s.MarkExtracting(1))
	mustTransition(t, s.MarkRetry(1, StatusRetryExtract, "timeout"))

	it, _ := s.GetItem(1)
	if it.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", it.RetryCount)
	}
	if it.LastError == nil || *it.LastError != "timeout" {
		t.Error("expected last error recorded")
	}
	if it.Status != StatusRetryExtract {
		t.Errorf("expected retry_extract, got %s", it.Status)
	}
}

func TestMarkRetryRejectsNonRetryStatus(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 1, ptr("https://a.com"), 10)
	if err := s.MarkRetry(1, StatusFailed, "boom"); err == nil {
		t.Error("expected error for non-retry status")
	}
}

func TestCountByStatus(t *testing.T) {
	s := openTestStore(t)
	insertItem(t, s, 1, ptr("https://a.com"), 10)
	insertItem(t, s, 2, ptr("https://b.com"), 10)
	mustTransition(t, s.MarkExtracting(2))

	counts, err := s.CountByStatus()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[StatusPending] != 1 || counts[StatusExtracting] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestWorkerRunRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.WorkerRun("extract"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown task, got %v", err)
	}

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.RecordWorkerRun("extract", first); err != nil {
		t.Fatalf("record run: %v", err)
	}

	wr, err := s.WorkerRun("extract")
	if err != nil {
		t.Fatalf("worker run: %v", err)
	}
	if !wr.LastRunTime.Equal(first) {
		t.Errorf("expected %v, got %v", first, wr.LastRunTime)
	}

	// Overwrite, never append.
	second := first.Add(30 * time.Minute)
	if err := s.RecordWorkerRun("extract", second); err != nil {
		t.Fatalf("record second run: %v", err)
	}
	runs, err := s.AllWorkerRuns()
	if err != nil {
		t.Fatalf("all runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(runs))
	}
	if !runs[0].LastRunTime.Equal(second) {
		t.Errorf("expected %v, got %v", second, runs[0].LastRunTime)
	}
}

func mustTransition(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
}
