// Package summarize turns extracted article text into structured summaries
// and moves items from extracted to completed.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storyfeed/internal/llm"
)

const summaryPrompt = `You are summarizing an article for a tech news digest.

Article Title: %s
Article Text:
%s

Respond with ONLY this JSON:
{
    "summary": "2-3 paragraph summary of the article",
    "short_summary": "One sentence capturing the core point",
    "key_points": ["point 1", "point 2", "point 3"],
    "topics": ["topic-tag", "topic-tag"],
    "reading_time_minutes": 4
}

Keep the summary factual and free of editorializing. reading_time_minutes is
the estimated time to read the original article.`

// maxArticleChars truncates very long articles before prompting.
const maxArticleChars = 24000

// Summary is the typed result of summarizing one article.
type Summary struct {
	Summary            string   `json:"summary"`
	ShortSummary       string   `json:"short_summary,omitempty"`
	KeyPoints          []string `json:"key_points,omitempty"`
	Topics             []string `json:"topics,omitempty"`
	ReadingTimeMinutes int      `json:"reading_time_minutes,omitempty"`
}

// Encode serializes a summary for blob storage.
func (s Summary) Encode() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// DecodeSummary deserializes a stored summary blob.
func DecodeSummary(data []byte) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	return &s, nil
}

// Service generates summaries through an LLM provider.
type Service struct {
	provider  llm.Provider
	maxTokens int
}

// NewService creates a summarization service.
func NewService(provider llm.Provider, maxTokens int) *Service {
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &Service{provider: provider, maxTokens: maxTokens}
}

// Summarize prompts the provider with the article and parses its JSON reply.
func (s *Service) Summarize(ctx context.Context, title, text string) (*Summary, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	if len(text) > maxArticleChars {
		text = text[:maxArticleChars]
	}

	reply, err := s.provider.Generate(ctx, fmt.Sprintf(summaryPrompt, title, text), s.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating summary: %w", err)
	}

	var summary Summary
	if err := llm.ParseJSON(reply, &summary); err != nil {
		return nil, err
	}
	if strings.TrimSpace(summary.Summary) == "" {
		return nil, fmt.Errorf("LLM reply has no summary text")
	}
	return &summary, nil
}
