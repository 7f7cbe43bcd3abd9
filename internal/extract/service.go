// Package extract pulls readable article text out of linked pages and moves
// items from pending to extracted.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// minTextLength rejects pages where readability found only boilerplate.
const minTextLength = 100

// Result is the typed output of a successful extraction.
type Result struct {
	Title     string
	Author    string
	Text      string
	Excerpt   string
	SiteName  string
	WordCount int
}

// Service fetches a page over HTTP and runs readability extraction on it.
type Service struct {
	client *http.Client
}

// NewService creates an extraction service with the given per-request timeout.
func NewService(timeout time.Duration) *Service {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Extract downloads pageURL and returns the readable article, or (nil, nil)
// when the page yields no usable text for this attempt.
func (s *Service) Extract(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "storyfeed/1.0 (news summarizer)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading page body: %w", err)
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return nil, nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minTextLength {
		return nil, nil
	}

	return &Result{
		Title:     strings.TrimSpace(article.Title),
		Author:    strings.TrimSpace(article.Byline),
		Text:      text,
		Excerpt:   strings.TrimSpace(article.Excerpt),
		SiteName:  strings.TrimSpace(article.SiteName),
		WordCount: len(strings.Fields(text)),
	}, nil
}
