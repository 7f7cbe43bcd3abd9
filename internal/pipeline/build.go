package pipeline

import (
	"fmt"
	"os"
	"time"

	"storyfeed/internal/blob"
	"storyfeed/internal/config"
	"storyfeed/internal/extract"
	"storyfeed/internal/feed"
	"storyfeed/internal/ingest"
	"storyfeed/internal/llm"
	"storyfeed/internal/notify"
	"storyfeed/internal/schedule"
	"storyfeed/internal/store"
	"storyfeed/internal/summarize"
)

// New wires the full pipeline from configuration: feed source, extraction and
// summarization services, notification channels, and the four stage workers.
func New(cfg *config.Config, st *store.Store, blobs *blob.Store) (*Orchestrator, error) {
	source, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	p := cfg.Pipeline
	maxRetries := p.MaxRetryAttempts

	provider := llm.CreateProvider(
		cfg.Summarization.Provider,
		cfg.Summarization.Model,
		cfg.Summarization.OllamaURL,
		cfg.Summarization.OpenAIModel,
		cfg.Summarization.APIKeyEnv,
	)

	fetchWorker := ingest.NewWorker(st, source, cfg.Source.TopLimit, p.Fetch.Concurrency)
	extractWorker := extract.NewWorker(st, blobs,
		extract.NewService(15*time.Second),
		p.Extract.BatchSize, p.Extract.Concurrency, maxRetries)
	summarizeWorker := summarize.NewWorker(st, blobs,
		summarize.NewService(provider, cfg.Summarization.MaxTokens),
		p.Summarize.BatchSize, p.Summarize.Concurrency, maxRetries)
	notifyWorker := notify.NewWorker(st, blobs, buildChannels(cfg), p.Notify.BatchSize)

	stages := []Stage{
		{Worker: fetchWorker, Interval: p.Fetch.Interval()},
		{Worker: extractWorker, Interval: p.Extract.Interval()},
		{Worker: summarizeWorker, Interval: p.Summarize.Interval()},
		{Worker: notifyWorker, Interval: p.Notify.Interval()},
	}

	return NewOrchestrator(schedule.NewKeeper(st), stages), nil
}

func buildSource(cfg *config.Config) (feed.Source, error) {
	switch cfg.Source.Kind {
	case "", "hn":
		return feed.NewHNClient(cfg.Source.HNBaseURL, 15*time.Second), nil
	case "rss":
		if len(cfg.Source.Feeds) == 0 {
			return nil, fmt.Errorf("source kind is rss but no feeds are configured")
		}
		feeds := make([]feed.RSSConfig, len(cfg.Source.Feeds))
		for i, f := range cfg.Source.Feeds {
			feeds[i] = feed.RSSConfig{URL: f.URL, Name: f.Name}
		}
		return feed.NewRSSSource(feeds), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// buildChannels returns the configured notification channels. An unset
// channel is simply absent; zero channels is a valid (if quiet) setup.
func buildChannels(cfg *config.Config) []notify.Channel {
	var channels []notify.Channel

	tg := cfg.Notifications.Telegram
	if token := os.Getenv(tg.BotTokenEnv); token != "" && tg.ChatID != "" {
		channels = append(channels, notify.NewTelegramChannel(token, tg.ChatID))
	}

	if url := os.Getenv(cfg.Notifications.Discord.WebhookURLEnv); url != "" {
		channels = append(channels, notify.NewDiscordChannel(url))
	}

	if topic := cfg.Notifications.Ntfy.Topic; topic != "" {
		channels = append(channels, notify.NewNtfyChannel(topic))
	}

	return channels
}
