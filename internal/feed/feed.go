// Package feed provides the story sources the fetch stage ingests from:
// the Hacker News API and, optionally, RSS/Atom front-page mirrors.
package feed

import (
	"context"
	"time"
)

// Story is one feed entry as reported by a source.
type Story struct {
	ID     int64
	Title  string
	URL    string // empty for text-only stories
	Author string
	Time   time.Time
	Score  int
}

// Source lists the current top story ids and resolves individual stories.
// Story returns nil for entries that exist but should not be ingested
// (deleted, dead, or not a story).
type Source interface {
	TopIDs(ctx context.Context, limit int) ([]int64, error)
	Story(ctx context.Context, id int64) (*Story, error)
}
