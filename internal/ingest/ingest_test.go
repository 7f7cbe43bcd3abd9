package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"storyfeed/internal/feed"
	"storyfeed/internal/store"
)

type fakeSource struct {
	ids     []int64
	stories map[int64]*feed.Story
	err     error
}

func (f *fakeSource) TopIDs(ctx context.Context, limit int) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.ids) > limit {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

func (f *fakeSource) Story(ctx context.Context, id int64) (*feed.Story, error) {
	s, ok := f.stories[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
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

func story(id int64, title, url string, score int) *feed.Story {
	return &feed.Story{ID: id, Title: title, URL: url, Author: "tester", Time: time.Now(), Score: score}
}

func TestRunIngestsNewStories(t *testing.T) {
	s := openTestStore(t)
	src := &fakeSource{
		ids: []int64{1, 2},
		stories: map[int64]*feed.Story{
			1: story(1, "First", "https://a.com", 100),
			2: story(2, "Second (Ask)", "", 50),
		},
	}

	w := NewWorker(s, src, 30, 2)
	counts := w.Run(context.Background())
	if counts.Succeeded != 2 {
		t.Fatalf("expected 2 successes, got %+v", counts)
	}

	it, err := s.GetItem(1)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if it.Status != store.StatusPending || it.Score != 100 {
		t.Errorf("unexpected item: %+v", it)
	}

	// Text-only stories are ingested with a null URL.
	textOnly, err := s.GetItem(2)
	if err != nil {
		t.Fatalf("get text-only item: %v", err)
	}
	if textOnly.URL != nil {
		t.Errorf("expected nil URL, got %q", *textOnly.URL)
	}
}

func TestRunRefreshDoesNotRegress(t *testing.T) {
	s := openTestStore(t)
	src := &fakeSource{
		ids:     []int64{1},
		stories: map[int64]*feed.Story{1: story(1, "First", "https://a.com", 100)},
	}
	w := NewWorker(s, src, 30, 2)
	w.Run(context.Background())

	// Item advances through the pipeline between fetch passes.
	if err := s.MarkExtracting(1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.MarkExtracted(1, "content/1.txt"); err != nil {
		t.Fatalf("extract: %v", err)
	}

	src.stories[1] = story(1, "First (updated)", "https://a.com", 250)
	counts := w.Run(context.Background())
	if counts.Succeeded != 1 {
		t.Fatalf("expected refresh success, got %+v", counts)
	}

	it, _ := s.GetItem(1)
	if it.Status != store.StatusExtracted {
		t.Errorf("refresh regressed status to %s", it.Status)
	}
	if it.Score != 250 || it.Title != "First (updated)" {
		t.Errorf("feed metadata not refreshed: %+v", it)
	}
}

func TestRunSkipsUnresolvableStories(t *testing.T) {
	s := openTestStore(t)
	src := &fakeSource{
		ids: []int64{1, 2},
		stories: map[int64]*feed.Story{
			1: story(1, "First", "https://a.com", 100),
			2: nil, // dead or deleted
		},
	}

	w := NewWorker(s, src, 30, 2)
	counts := w.Run(context.Background())
	if counts.Succeeded != 1 || counts.Skipped != 1 {
		t.Errorf("expected 1 success and 1 skip, got %+v", counts)
	}
}

func TestRunFeedListFailure(t *testing.T) {
	s := openTestStore(t)
	w := NewWorker(s, &fakeSource{err: errors.New("feed down")}, 30, 2)
	counts := w.Run(context.Background())
	if counts.Total() != 0 {
		t.Errorf("expected zero counts on list failure, got %+v", counts)
	}
}
