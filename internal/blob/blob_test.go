package blob

import (
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	key := ContentKey(8863)
	if err := s.Put(key, []byte("article text")); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "article text" {
		t.Errorf("expected 'article text', got %q", data)
	}
}

func TestPutOverwrites(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	key := SummaryKey(1)
	s.Put(key, []byte("first"))
	if err := s.Put(key, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ := s.Get(key)
	if string(data) != "second" {
		t.Errorf("expected 'second', got %q", data)
	}
}

func TestGetMissing(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	if _, err := s.Get("content/404.txt"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	for _, key := range []string{"", "/etc/passwd", "../outside.txt", "a/../../outside.txt"} {
		if err := s.Put(key, []byte("x")); err == nil {
			t.Errorf("expected error for key %q", key)
		}
		if _, err := s.Get(key); err == nil || err == ErrNotFound {
			t.Errorf("expected validation error for key %q, got %v", key, err)
		}
	}
}
