package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/podscope/podscope/pkg/config"
	"github.com/podscope/podscope/pkg/domain"
)

// ItemReader provides the content an episode is composed from
type ItemReader interface {
	GetItemsSince(ctx context.Context, since time.Time, limit int) ([]*domain.Item, error)
}

// Pipeline composes podcast episode scripts from recently ingested content
// using an OpenAI-compatible endpoint. It is the default implementation of
// the scheduler's generation boundary; TTS rendering and publishing live
// elsewhere.
type Pipeline struct {
	client    *openai.Client
	config    config.LLMConfig
	items     ItemReader
	systemMsg string
	now       func() time.Time
}

// maxEpisodeItems caps how many items feed a single episode prompt
const maxEpisodeItems = 30

// default system prompt for episode composition
const defaultSystemPrompt = `You are a podcast script writer. Given a set of recent posts and articles,
write a single coherent spoken-word episode script that covers the interesting items.
Group related items, skip duplicates and pure noise, and keep a conversational tone.
Start with a one-sentence episode summary, then the script body. Plain text only, no markdown.`

// NewPipeline creates a generation pipeline
func NewPipeline(cfg config.LLMConfig, items ItemReader) *Pipeline {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	systemMsg := cfg.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	return &Pipeline{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    cfg,
		items:     items,
		systemMsg: systemMsg,
		now:       time.Now,
	}
}

// Generate composes an episode from content ingested since the podcast's
// last run. Returns (nil, nil) when there is nothing to compose.
func (p *Pipeline) Generate(ctx context.Context, podcast *domain.Podcast) (*domain.Episode, error) {
	now := p.now()

	since := now.Add(-24 * time.Hour)
	if podcast.LastGeneratedAt != nil && podcast.LastGeneratedAt.After(since) {
		since = *podcast.LastGeneratedAt
	}

	items, err := p.items.GetItemsSince(ctx, since, maxEpisodeItems)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil // nothing new to talk about
	}

	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Temperature: float32(p.config.Temperature),
		MaxTokens:   p.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: p.buildPrompt(podcast, items)},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("compose episode: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	script := strings.TrimSpace(resp.Choices[0].Message.Content)
	if script == "" {
		return nil, fmt.Errorf("empty episode script")
	}

	return &domain.Episode{
		PodcastID: podcast.ID,
		Title:     fmt.Sprintf("%s %s", podcast.Name, now.Format("2006-01-02")),
		Script:    script,
	}, nil
}

// buildPrompt formats the source material for the LLM
func (p *Pipeline) buildPrompt(podcast *domain.Podcast, items []*domain.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Podcast: %s\n\nSource material (%d items):\n\n", podcast.Name, len(items))

	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s", i+1, item.Title)
		if item.Author != "" {
			fmt.Fprintf(&sb, " (by %s)", item.Author)
		}
		if item.Published != nil {
			fmt.Fprintf(&sb, " [%s]", item.Published.Format("2006-01-02"))
		}
		sb.WriteString("\n")
		sb.WriteString(truncate(item.Body, 1500))
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// truncate limits source material length per item
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
