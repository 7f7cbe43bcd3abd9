package feed

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 30

// RSSConfig is one configured RSS/Atom feed.
type RSSConfig struct {
	URL  string
	Name string
}

// RSSSource serves front-page stories from RSS/Atom feeds through the same
// Source contract as the Hacker News client. RSS entries carry no numeric id,
// so a stable one is derived by hashing the entry's GUID (or link).
type RSSSource struct {
	feeds  []RSSConfig
	parser *gofeed.Parser

	mu      sync.Mutex
	entries map[int64]Story
}

// NewRSSSource creates a source over the given feeds.
func NewRSSSource(feeds []RSSConfig) *RSSSource {
	return &RSSSource{
		feeds:   feeds,
		parser:  gofeed.NewParser(),
		entries: make(map[int64]Story),
	}
}

// TopIDs parses every configured feed and returns up to limit entry ids,
// in feed order. Parsed entries are cached for the Story calls that follow.
func (r *RSSSource) TopIDs(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	fresh := make(map[int64]Story)

	for _, fc := range r.feeds {
		feed, err := r.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("failed to parse feed %s: %v", fc.URL, err)
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if count >= maxPerFeed {
				break
			}
			story := storyFromEntry(item)
			if story == nil {
				continue
			}
			if _, seen := fresh[story.ID]; seen {
				continue
			}
			fresh[story.ID] = *story
			ids = append(ids, story.ID)
			count++
		}
		log.Printf("parsed %d entries from %s", count, feedName(fc))
	}

	if len(fresh) == 0 && len(r.feeds) > 0 {
		return nil, fmt.Errorf("no feed could be parsed")
	}

	r.mu.Lock()
	for id, s := range fresh {
		r.entries[id] = s
	}
	r.mu.Unlock()

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Story returns a previously listed entry from the cache.
func (r *RSSSource) Story(ctx context.Context, id int64) (*Story, error) {
	r.mu.Lock()
	story, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown feed entry %d", id)
	}
	return &story, nil
}

func storyFromEntry(item *gofeed.Item) *Story {
	link := strings.TrimSpace(item.Link)
	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = link
	}
	if guid == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}

	return &Story{
		ID:     entryID(guid),
		Title:  title,
		URL:    link,
		Author: author,
		Time:   published,
	}
}

// entryID hashes a GUID into a stable positive int64.
func entryID(guid string) int64 {
	h := fnv.New64a()
	h.Write([]byte(guid))
	id := int64(h.Sum64() & 0x7fffffffffffffff)
	if id == 0 {
		id = 1
	}
	return id
}

func feedName(fc RSSConfig) string {
	if fc.Name != "" {
		return fc.Name
	}
	return fc.URL
}
