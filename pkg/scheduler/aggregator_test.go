package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscope/podscope/pkg/domain"
	"github.com/podscope/podscope/pkg/fetcher"
)

func TestAggregator_Aggregate(t *testing.T) {
	agg := NewAggregator()
	ts := func(d, h int) *time.Time {
		t := time.Date(2024, 3, d, h, 0, 0, 0, time.UTC)
		return &t
	}

	t.Run("timeline batch collapses to one digest", func(t *testing.T) {
		src := &domain.Source{ID: 3, Type: domain.SourceTypeTimeline, URL: "https://nitter.net/alice/rss"}
		items := []domain.Item{
			{SourceID: 3, Body: "first post", Author: "alice", Published: ts(14, 9)},
			{SourceID: 3, Body: "second post", Author: "alice", Published: ts(15, 11)},
			{SourceID: 3, Body: "third post", Author: "alice", Published: ts(14, 20)},
		}

		out := agg.Aggregate(items, src)

		require.Len(t, out, 1)
		digest := out[0]
		assert.Equal(t, int64(3), digest.SourceID)
		assert.Equal(t, "Posts from alice — Mar 15, 2024", digest.Title)
		assert.Equal(t, "alice", digest.Author)
		assert.Equal(t, "https://nitter.net/alice/rss", digest.URL)
		require.NotNil(t, digest.Published)
		assert.Equal(t, *ts(15, 11), *digest.Published, "digest carries the latest publish time")
		assert.Contains(t, digest.Body, "[Mar 14, 2024] first post")
		assert.Contains(t, digest.Body, "[Mar 15, 2024] second post")
		assert.Contains(t, digest.Body, digestSeparator)
		assert.Equal(t, fetcher.Fingerprint(digest.Body), digest.Fingerprint)
	})

	t.Run("single item passes through untouched", func(t *testing.T) {
		src := &domain.Source{ID: 3, Type: domain.SourceTypeTimeline}
		items := []domain.Item{{SourceID: 3, Title: "only one", Body: "post"}}

		out := agg.Aggregate(items, src)
		require.Len(t, out, 1)
		assert.Equal(t, "only one", out[0].Title)
	})

	t.Run("empty batch passes through", func(t *testing.T) {
		src := &domain.Source{Type: domain.SourceTypeTimeline}
		assert.Empty(t, agg.Aggregate(nil, src))
	})

	t.Run("regular feed never aggregates", func(t *testing.T) {
		src := &domain.Source{Type: domain.SourceTypeFeed, URL: "https://blog.example.com/feed.xml"}
		items := []domain.Item{{Body: "a"}, {Body: "b"}, {Body: "c"}}

		out := agg.Aggregate(items, src)
		assert.Len(t, out, 3)
	})

	t.Run("mirror host feed aggregates by default", func(t *testing.T) {
		src := &domain.Source{Type: domain.SourceTypeFeed, URL: "https://nitter.example.org/bob/rss"}
		items := []domain.Item{{Body: "a"}, {Body: "b"}}

		out := agg.Aggregate(items, src)
		assert.Len(t, out, 1)
	})

	t.Run("explicit override beats type default", func(t *testing.T) {
		off := false
		src := &domain.Source{Type: domain.SourceTypeTimeline, Aggregate: &off}
		items := []domain.Item{{Body: "a"}, {Body: "b"}}
		assert.Len(t, agg.Aggregate(items, src), 2)

		on := true
		src = &domain.Source{Type: domain.SourceTypeFeed, URL: "https://blog.example.com/feed.xml", Aggregate: &on}
		assert.Len(t, agg.Aggregate(items, src), 1)
	})

	t.Run("digest without authors falls back to host", func(t *testing.T) {
		src := &domain.Source{ID: 1, Type: domain.SourceTypeTimeline, URL: "https://nitter.net/carol/rss"}
		items := []domain.Item{{Body: "a"}, {Body: "b"}}

		out := agg.Aggregate(items, src)
		require.Len(t, out, 1)
		assert.Equal(t, "Posts from nitter.net — Unknown date", out[0].Title)
		assert.Empty(t, out[0].Author)
	})

	t.Run("items without dates keep bare bodies in the digest", func(t *testing.T) {
		src := &domain.Source{ID: 1, Type: domain.SourceTypeTimeline, URL: "https://nitter.net/carol/rss"}
		items := []domain.Item{
			{Body: "dated", Published: ts(15, 8)},
			{Body: "undated"},
		}

		out := agg.Aggregate(items, src)
		require.Len(t, out, 1)
		assert.Contains(t, out[0].Body, "[Mar 15, 2024] dated")
		assert.Contains(t, out[0].Body, "undated")
		assert.NotContains(t, out[0].Body, "[] undated")
	})
}

func TestDelayConfig_Resolve(t *testing.T) {
	cfg := DelayConfig{
		Hosts: map[string]time.Duration{"nitter.net": 5 * time.Second},
		Types: map[domain.SourceType]time.Duration{domain.SourceTypeTimeline: 2 * time.Second},
	}

	t.Run("source override wins", func(t *testing.T) {
		d := 10 * time.Second
		src := &domain.Source{Type: domain.SourceTypeTimeline, URL: "https://nitter.net/x/rss", FetchDelay: &d}
		assert.Equal(t, 10*time.Second, cfg.Resolve(src))
	})

	t.Run("host beats type", func(t *testing.T) {
		src := &domain.Source{Type: domain.SourceTypeTimeline, URL: "https://nitter.net/x/rss"}
		assert.Equal(t, 5*time.Second, cfg.Resolve(src))
	})

	t.Run("type fallback", func(t *testing.T) {
		src := &domain.Source{Type: domain.SourceTypeTimeline, URL: "https://other.example.com/rss"}
		assert.Equal(t, 2*time.Second, cfg.Resolve(src))
	})

	t.Run("no match is zero", func(t *testing.T) {
		src := &domain.Source{Type: domain.SourceTypeFeed, URL: "https://blog.example.com/feed.xml"}
		assert.Zero(t, cfg.Resolve(src))
	})

	t.Run("zero override disables inherited delays", func(t *testing.T) {
		var d time.Duration
		src := &domain.Source{Type: domain.SourceTypeTimeline, URL: "https://nitter.net/x/rss", FetchDelay: &d}
		assert.Zero(t, cfg.Resolve(src))
	})
}
