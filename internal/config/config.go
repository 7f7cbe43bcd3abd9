package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Source        Source        `yaml:"source"`
	Pipeline      Pipeline      `yaml:"pipeline"`
	Summarization Summarization `yaml:"summarization"`
	Notifications Notifications `yaml:"notifications"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
}

type Source struct {
	Kind      string `yaml:"kind"` // "hn" or "rss"
	HNBaseURL string `yaml:"hn_base_url"`
	TopLimit  int    `yaml:"top_limit"`
	Feeds     []Feed `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Pipeline struct {
	TickIntervalMinutes int   `yaml:"tick_interval_minutes"`
	MaxRetryAttempts    int   `yaml:"max_retry_attempts"`
	Fetch               Stage `yaml:"fetch"`
	Extract             Stage `yaml:"extract"`
	Summarize           Stage `yaml:"summarize"`
	Notify              Stage `yaml:"notify"`
}

type Stage struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	BatchSize       int `yaml:"batch_size"`
	Concurrency     int `yaml:"concurrency"`
}

// Interval returns the stage's scheduling interval as a duration.
func (s Stage) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

type Summarization struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Notifications struct {
	Telegram Telegram `yaml:"telegram"`
	Discord  Discord  `yaml:"discord"`
	Ntfy     Ntfy     `yaml:"ntfy"`
}

type Telegram struct {
	BotTokenEnv string `yaml:"bot_token_env"`
	ChatID      string `yaml:"chat_id"`
}

type Discord struct {
	WebhookURLEnv string `yaml:"webhook_url_env"`
}

type Ntfy struct {
	Topic string `yaml:"topic"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for storyfeed.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "storyfeed")
}

// DataDir returns the XDG data directory for storyfeed.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "storyfeed")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/storyfeed/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'storyfeed init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Source: Source{
			Kind:     "hn",
			TopLimit: 30,
		},
		Pipeline: Pipeline{
			TickIntervalMinutes: 1,
			MaxRetryAttempts:    3,
			Fetch:               Stage{IntervalMinutes: 15, Concurrency: 4},
			Extract:             Stage{IntervalMinutes: 5, BatchSize: 10, Concurrency: 3},
			Summarize:           Stage{IntervalMinutes: 5, BatchSize: 5, Concurrency: 2},
			Notify:              Stage{IntervalMinutes: 10, BatchSize: 10, Concurrency: 1},
		},
		Summarization: Summarization{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   1024,
		},
		Notifications: Notifications{
			Telegram: Telegram{BotTokenEnv: "TELEGRAM_BOT_TOKEN"},
			Discord:  Discord{WebhookURLEnv: "DISCORD_WEBHOOK_URL"},
		},
		Server: Server{Port: 8000},
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
