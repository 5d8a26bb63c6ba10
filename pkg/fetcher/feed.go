package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/podscope/podscope/pkg/domain"
)

// FeedFetcher polls RSS/Atom feeds. The cursor is the RFC3339 timestamp of
// the newest published item seen so far; items at or before it are dropped.
type FeedFetcher struct {
	client    *http.Client
	userAgent string
}

// NewFeedFetcher creates a feed fetcher with the given timeout
func NewFeedFetcher(timeout time.Duration, userAgent string) *FeedFetcher {
	return &FeedFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch retrieves and parses the feed, returning items newer than the cursor
func (f *FeedFetcher) Fetch(ctx context.Context, src *domain.Source) ([]domain.Item, string, error) {
	body, err := f.get(ctx, src.URL)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, "", fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	since, _ := parseFeedCursor(src.LastSeenCursor)

	items := make([]domain.Item, 0, len(parsed.Items))
	var newest time.Time
	for _, fi := range parsed.Items {
		published := itemPublished(fi)
		if published != nil && !since.IsZero() && !published.After(since) {
			continue
		}

		item := domain.Item{
			SourceID: src.ID,
			Title:    fi.Title,
			Body:     sanitize(itemBody(fi)),
			URL:      fi.Link,
			Published: published,
		}
		if fi.Author != nil {
			item.Author = fi.Author.Name
		}
		items = append(items, item)

		if published != nil && published.After(newest) {
			newest = *published
		}
	}

	nextCursor := ""
	if !newest.IsZero() {
		nextCursor = formatFeedCursor(newest)
	}
	return items, nextCursor, nil
}

// get retrieves feed content from a URL
func (f *FeedFetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if err := checkStatus(resp, url); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// parseFeedCursor decodes a feed cursor, zero time when absent or malformed
func parseFeedCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse feed cursor %q: %w", cursor, err)
	}
	return t, nil
}

// formatFeedCursor encodes a feed cursor
func formatFeedCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// itemPublished picks publish time, falling back to the update time
func itemPublished(fi *gofeed.Item) *time.Time {
	if fi.PublishedParsed != nil {
		return fi.PublishedParsed
	}
	return fi.UpdatedParsed
}

// itemBody prefers full content over the summary
func itemBody(fi *gofeed.Item) string {
	if fi.Content != "" {
		return fi.Content
	}
	return fi.Description
}
