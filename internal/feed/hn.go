package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultHNBaseURL = "https://hacker-news.firebaseio.com/v0"

// HNClient reads the Hacker News Firebase API.
type HNClient struct {
	baseURL string
	client  *http.Client
}

// NewHNClient creates a Hacker News client. An empty baseURL selects the
// public API endpoint.
func NewHNClient(baseURL string, timeout time.Duration) *HNClient {
	if baseURL == "" {
		baseURL = defaultHNBaseURL
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HNClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// hnItem is the wire shape of /v0/item/<id>.json.
type hnItem struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Score   int    `json:"score"`
	Dead    bool   `json:"dead"`
	Deleted bool   `json:"deleted"`
}

// TopIDs returns up to limit ids from the top-stories ranking.
func (c *HNClient) TopIDs(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	if err := c.getJSON(ctx, c.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("listing top stories: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Story resolves a single item. Non-story items and dead or deleted entries
// return nil without error.
func (c *HNClient) Story(ctx context.Context, id int64) (*Story, error) {
	var item hnItem
	if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &item); err != nil {
		return nil, fmt.Errorf("loading item %d: %w", id, err)
	}
	if item.ID == 0 || item.Type != "story" || item.Dead || item.Deleted || item.Title == "" {
		return nil, nil
	}
	return &Story{
		ID:     item.ID,
		Title:  item.Title,
		URL:    item.URL,
		Author: item.By,
		Time:   time.Unix(item.Time, 0).UTC(),
		Score:  item.Score,
	}, nil
}

func (c *HNClient) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "storyfeed/1.0 (news summarizer)")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
