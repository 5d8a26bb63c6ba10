package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscope/podscope/pkg/config"
	"github.com/podscope/podscope/pkg/domain"
)

type itemReaderFunc func(ctx context.Context, since time.Time, limit int) ([]*domain.Item, error)

func (f itemReaderFunc) GetItemsSince(ctx context.Context, since time.Time, limit int) ([]*domain.Item, error) {
	return f(ctx, since, limit)
}

// fakeLLMServer returns an httptest server speaking just enough of the
// chat-completions protocol, recording the last request body
func fakeLLMServer(t *testing.T, content string, lastReq *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		if lastReq != nil {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			*lastReq = body
		}

		resp := map[string]interface{}{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestPipeline_Generate(t *testing.T) {
	published := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	items := []*domain.Item{
		{ID: 1, SourceID: 1, Title: "Big Release", Body: "a new version shipped", Author: "alice", Published: &published},
		{ID: 2, SourceID: 2, Title: "Outage Postmortem", Body: "what went wrong and why"},
	}

	t.Run("composes an episode from recent items", func(t *testing.T) {
		var lastReq map[string]interface{}
		srv := fakeLLMServer(t, "Welcome to today's episode. First up, the big release...", &lastReq)
		defer srv.Close()

		reader := itemReaderFunc(func(_ context.Context, _ time.Time, limit int) ([]*domain.Item, error) {
			assert.Equal(t, maxEpisodeItems, limit)
			return items, nil
		})
		p := NewPipeline(config.LLMConfig{Endpoint: srv.URL + "/v1", Model: "test-model", MaxTokens: 500}, reader)
		p.now = func() time.Time { return time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC) }

		podcast := &domain.Podcast{ID: 9, Name: "daily brief"}
		episode, err := p.Generate(context.Background(), podcast)
		require.NoError(t, err)

		require.NotNil(t, episode)
		assert.Equal(t, int64(9), episode.PodcastID)
		assert.Equal(t, "daily brief 2024-03-15", episode.Title)
		assert.Contains(t, episode.Script, "Welcome to today's episode")

		// prompt carries the source material
		messages := lastReq["messages"].([]interface{})
		require.Len(t, messages, 2)
		user := messages[1].(map[string]interface{})
		assert.Contains(t, user["content"], "Big Release")
		assert.Contains(t, user["content"], "(by alice)")
		assert.Contains(t, user["content"], "Outage Postmortem")
	})

	t.Run("nothing to generate", func(t *testing.T) {
		reader := itemReaderFunc(func(_ context.Context, _ time.Time, _ int) ([]*domain.Item, error) {
			return nil, nil
		})
		p := NewPipeline(config.LLMConfig{Endpoint: "http://localhost:1/v1", Model: "test-model"}, reader)

		episode, err := p.Generate(context.Background(), &domain.Podcast{ID: 1, Name: "empty"})
		require.NoError(t, err)
		assert.Nil(t, episode)
	})

	t.Run("since window respects last generation time", func(t *testing.T) {
		now := time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC)
		last := now.Add(-2 * time.Hour)
		var gotSince time.Time
		reader := itemReaderFunc(func(_ context.Context, since time.Time, _ int) ([]*domain.Item, error) {
			gotSince = since
			return nil, nil
		})
		p := NewPipeline(config.LLMConfig{Endpoint: "http://localhost:1/v1", Model: "test-model"}, reader)
		p.now = func() time.Time { return now }

		podcast := &domain.Podcast{ID: 1, Name: "brief", LastGeneratedAt: &last}
		_, err := p.Generate(context.Background(), podcast)
		require.NoError(t, err)
		assert.Equal(t, last, gotSince, "recent last run narrows the window")

		// a run older than a day falls back to the 24h window
		stale := now.Add(-72 * time.Hour)
		podcast.LastGeneratedAt = &stale
		_, err = p.Generate(context.Background(), podcast)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-24*time.Hour), gotSince)
	})

	t.Run("reader error propagates", func(t *testing.T) {
		reader := itemReaderFunc(func(_ context.Context, _ time.Time, _ int) ([]*domain.Item, error) {
			return nil, errors.New("db closed")
		})
		p := NewPipeline(config.LLMConfig{Endpoint: "http://localhost:1/v1", Model: "test-model"}, reader)

		_, err := p.Generate(context.Background(), &domain.Podcast{ID: 1, Name: "brief"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load items")
	})

	t.Run("configured timeout bounds the completion call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		reader := itemReaderFunc(func(_ context.Context, _ time.Time, _ int) ([]*domain.Item, error) {
			return items, nil
		})
		p := NewPipeline(config.LLMConfig{Endpoint: srv.URL + "/v1", Model: "test-model",
			Timeout: 50 * time.Millisecond}, reader)

		start := time.Now()
		_, err := p.Generate(context.Background(), &domain.Podcast{ID: 1, Name: "brief"})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 250*time.Millisecond, "call aborted by the client timeout")
	})

	t.Run("empty completion is an error", func(t *testing.T) {
		srv := fakeLLMServer(t, "   ", nil)
		defer srv.Close()

		reader := itemReaderFunc(func(_ context.Context, _ time.Time, _ int) ([]*domain.Item, error) {
			return items, nil
		})
		p := NewPipeline(config.LLMConfig{Endpoint: srv.URL + "/v1", Model: "test-model"}, reader)

		_, err := p.Generate(context.Background(), &domain.Podcast{ID: 1, Name: "brief"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty episode script")
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefghij", 5))
	assert.Equal(t, "exact", truncate("exact", 5))
}
