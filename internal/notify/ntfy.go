package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyfeed/internal/store"
	"storyfeed/internal/summarize"
)

// NtfyChannel publishes summaries to an ntfy topic.
type NtfyChannel struct {
	endpoint string
	client   *http.Client
}

// NewNtfyChannel registers the topic endpoint, e.g. https://ntfy.sh/mytopic.
func NewNtfyChannel(endpoint string) *NtfyChannel {
	return &NtfyChannel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the channel in logs and counts.
func (c *NtfyChannel) Name() string { return "ntfy" }

// Send publishes one summarized story to the topic.
func (c *NtfyChannel) Send(ctx context.Context, item store.Item, summary summarize.Summary) error {
	if c.endpoint == "" {
		return fmt.Errorf("ntfy channel misconfigured")
	}

	message := summary.ShortSummary
	if message == "" {
		message = summary.Summary
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Title", item.Title)
	req.Header.Set("Tags", "newspaper")
	if item.URL != nil && *item.URL != "" {
		req.Header.Set("Click", *item.URL)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy error: %s", resp.Status)
	}
	return nil
}
