package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyfeed/internal/store"
	"storyfeed/internal/summarize"
)

// DiscordChannel posts summaries to a Discord webhook as an embed.
type DiscordChannel struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordChannel registers the webhook endpoint.
func NewDiscordChannel(webhookURL string) *DiscordChannel {
	return &DiscordChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the channel in logs and counts.
func (c *DiscordChannel) Name() string { return "discord" }

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordFooter      `json:"footer,omitempty"`
}

type discordEmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Send posts one summarized story to the webhook.
func (c *DiscordChannel) Send(ctx context.Context, item store.Item, summary summarize.Summary) error {
	if c.webhookURL == "" {
		return fmt.Errorf("discord channel misconfigured")
	}

	description := summary.Summary
	if len(description) > 3800 {
		description = description[:3800] + "…"
	}

	embed := discordEmbed{
		Title:       item.Title,
		Description: description,
		Footer:      &discordFooter{Text: fmt.Sprintf("%d points", item.Score)},
	}
	if item.URL != nil {
		embed.URL = *item.URL
	}
	if len(summary.KeyPoints) > 0 {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:  "Key points",
			Value: "• " + strings.Join(summary.KeyPoints, "\n• "),
		})
	}

	payload, err := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord error: %s", resp.Status)
	}
	return nil
}
