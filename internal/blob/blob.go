// Package blob is a filesystem key/value store for extracted article text and
// generated summaries, addressed by the opaque refs kept on each item row.
package blob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates no blob exists for the given key.
var ErrNotFound = errors.New("blob: not found")

// Store persists blobs as files under a base directory. Keys are
// slash-separated relative paths like "content/8863.txt".
type Store struct {
	dir string
}

// NewStore creates a blob store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Put writes data under key, replacing any existing blob. The write goes
// through a temp file and rename so readers never observe a partial blob.
func (s *Store) Put(key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating blob subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing blob %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing blob %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming blob %q: %w", key, err)
	}
	return nil
}

// Get reads the blob stored under key, or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %q: %w", key, err)
	}
	return data, nil
}

// keyPath validates a key and resolves it under the base directory. Keys must
// stay inside the store: no absolute paths, no parent traversal.
func (s *Store) keyPath(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

// ContentKey returns the conventional blob key for an item's extracted text.
func ContentKey(itemID int64) string {
	return fmt.Sprintf("content/%d.txt", itemID)
}

// SummaryKey returns the conventional blob key for an item's summary JSON.
func SummaryKey(itemID int64) string {
	return fmt.Sprintf("summary/%d.json", itemID)
}
