package summarize

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"storyfeed/internal/blob"
	"storyfeed/internal/store"
)

type fakeSummarizer struct {
	summary *Summary
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, title, text string) (*Summary, error) {
	return f.summary, f.err
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(s string) *string { return &s }

// seedExtracted inserts an item already advanced to extracted with content
// stored in blobs.
func seedExtracted(t *testing.T, s *store.Store, blobs *blob.Store, id int64) {
	t.Helper()
	if _, err := s.UpsertItem(id, "Story", ptr("https://a.com"), "tester", time.Now(), 10); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if err := s.MarkExtracting(id); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ref := blob.ContentKey(id)
	if err := blobs.Put(ref, []byte("article text")); err != nil {
		t.Fatalf("put content: %v", err)
	}
	if err := s.MarkExtracted(id, ref); err != nil {
		t.Fatalf("extract: %v", err)
	}
}

func TestRunSuccess(t *testing.T) {
	s := openTestStore(t)
	blobs, _ := blob.NewStore(t.TempDir())
	seedExtracted(t, s, blobs, 1)

	svc := &fakeSummarizer{summary: &Summary{
		Summary:            "A detailed summary.",
		ShortSummary:       "Short.",
		KeyPoints:          []string{"a", "b"},
		ReadingTimeMinutes: 4,
	}}
	w := NewWorker(s, blobs, svc, 10, 2, 3)

	counts := w.Run(context.Background())
	if counts.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %+v", counts)
	}

	it, _ := s.GetItem(1)
	if it.Status != store.StatusCompleted {
		t.Errorf("expected completed, got %s", it.Status)
	}
	if it.SummaryRef == nil {
		t.Fatal("expected summary ref set")
	}

	data, err := blobs.Get(*it.SummaryRef)
	if err != nil {
		t.Fatalf("get summary blob: %v", err)
	}
	decoded, err := DecodeSummary(data)
	if err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if decoded.Summary != "A detailed summary." || len(decoded.KeyPoints) != 2 {
		t.Errorf("unexpected summary: %+v", decoded)
	}
}

func TestRunProviderErrorRetries(t *testing.T) {
	s := openTestStore(t)
	blobs, _ := blob.NewStore(t.TempDir())
	seedExtracted(t, s, blobs, 1)

	w := NewWorker(s, blobs, &fakeSummarizer{err: errors.New("model overloaded")}, 10, 2, 3)
	counts := w.Run(context.Background())
	if counts.Retried != 1 {
		t.Fatalf("expected 1 retry, got %+v", counts)
	}

	it, _ := s.GetItem(1)
	if it.Status != store.StatusRetrySummarize {
		t.Errorf("expected retry_summarize, got %s", it.Status)
	}
	if it.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", it.RetryCount)
	}
	if it.ContentRef == nil {
		t.Error("content ref must survive a summarize retry")
	}
}

func TestRunContentReadFailureRetries(t *testing.T) {
	s := openTestStore(t)
	blobs, _ := blob.NewStore(t.TempDir())
	seedExtracted(t, s, blobs, 1)

	// Fresh empty blob store simulates the content blob going missing.
	empty, _ := blob.NewStore(t.TempDir())
	w := NewWorker(s, empty, &fakeSummarizer{}, 10, 2, 3)

	counts := w.Run(context.Background())
	if counts.Retried != 1 {
		t.Fatalf("expected 1 retry on content read failure, got %+v", counts)
	}
}

func TestRunRetriesExhaustToFailed(t *testing.T) {
	s := openTestStore(t)
	blobs, _ := blob.NewStore(t.TempDir())
	seedExtracted(t, s, blobs, 1)

	maxRetries := 1
	w := NewWorker(s, blobs, &fakeSummarizer{err: errors.New("down")}, 10, 2, maxRetries)
	for pass := 0; pass < maxRetries+1; pass++ {
		w.Run(context.Background())
	}

	it, _ := s.GetItem(1)
	if it.Status != store.StatusFailed {
		t.Errorf("expected failed, got %s", it.Status)
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	orig := Summary{Summary: "body", Topics: []string{"go"}, ReadingTimeMinutes: 3}
	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSummary(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Summary != orig.Summary || decoded.ReadingTimeMinutes != 3 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
