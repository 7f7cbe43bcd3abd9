package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"storyfeed/internal/store"
	"storyfeed/internal/summarize"
)

var md = goldmark.New()

// TelegramChannel posts summaries to a Telegram chat via the bot API.
// Summary text is markdown; it is rendered to HTML for parse_mode=HTML.
type TelegramChannel struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewTelegramChannel registers bot token and chat identifier.
func NewTelegramChannel(botToken, chatID string) *TelegramChannel {
	return &TelegramChannel{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the channel in logs and counts.
func (c *TelegramChannel) Name() string { return "telegram" }

// Send posts one summarized story as an HTML message.
func (c *TelegramChannel) Send(ctx context.Context, item store.Item, summary summarize.Summary) error {
	if c.botToken == "" || c.chatID == "" {
		return fmt.Errorf("telegram channel misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	form := url.Values{}
	form.Set("chat_id", c.chatID)
	form.Set("text", c.formatMessage(item, summary))
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

func (c *TelegramChannel) formatMessage(item store.Item, summary summarize.Summary) string {
	var b strings.Builder
	if item.URL != nil && *item.URL != "" {
		fmt.Fprintf(&b, "<b><a href=%q>%s</a></b>", *item.URL, htmlEscape(item.Title))
	} else {
		fmt.Fprintf(&b, "<b>%s</b>", htmlEscape(item.Title))
	}
	fmt.Fprintf(&b, "\n⬆ %d points", item.Score)
	if summary.ReadingTimeMinutes > 0 {
		fmt.Fprintf(&b, " · %d min read", summary.ReadingTimeMinutes)
	}
	b.WriteString("\n\n")
	b.WriteString(renderMarkdown(summary.Summary))
	if len(summary.KeyPoints) > 0 {
		b.WriteString("\n")
		for _, p := range summary.KeyPoints {
			fmt.Fprintf(&b, "\n• %s", htmlEscape(p))
		}
	}
	return b.String()
}

// renderMarkdown converts summary markdown to the HTML subset Telegram
// accepts. Block tags goldmark emits are flattened to plain paragraphs.
func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return htmlEscape(text)
	}
	out := buf.String()
	out = strings.ReplaceAll(out, "<p>", "")
	out = strings.ReplaceAll(out, "</p>", "\n")
	out = strings.ReplaceAll(out, "<strong>", "<b>")
	out = strings.ReplaceAll(out, "</strong>", "</b>")
	out = strings.ReplaceAll(out, "<em>", "<i>")
	out = strings.ReplaceAll(out, "</em>", "</i>")
	return strings.TrimSpace(out)
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
